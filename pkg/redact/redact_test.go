package redact

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmail(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"foobar@example.com":  "fo***@example.com",
		"ab@ex.com":           "***@ex.com",
		"user@":               "us***@",
		"no-at":               "***",
		"a@b@c":               "***",
		"abc.def+tag@EXAMPLE": "ab***@EXAMPLE",
		"пётр@пример.рф":      "пё***@пример.рф",
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, want, Email(in))
		})
	}
}

func TestAuthorization(t *testing.T) {
	t.Parallel()

	require.Equal(t, "", Authorization(""))
	require.Equal(t, "Bearer "+Token(), Authorization("Bearer eyJhbGciOi.x.y"))
	require.Equal(t, Token(), Authorization("opaque"))
}

func TestURL(t *testing.T) {
	t.Parallel()

	got := URL("http://localhost:8000/api/v1/events?access_token=A1&topic=notes")
	require.NotContains(t, got, "A1")
	require.Contains(t, got, "topic=notes")
	require.Contains(t, got, "access_token=%5BREDACTED_TOKEN%5D")

	plain := "http://localhost:8000/api/v1/papers/?page=2"
	require.Equal(t, plain, URL(plain))

	require.Equal(t, "***", URL("http://[::1"))
}
