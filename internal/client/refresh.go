package client

import (
	"context"
	"sync"
	"time"
)

// defaultHandoff — сколько эпизод ждёт отправки повтора одним участником,
// прежде чем выдать токен следующему.
const defaultHandoff = 2 * time.Second

// Состояния координатора обновления токена.
type refreshState int

const (
	stateIdle refreshState = iota
	stateRefreshing
)

// outcome — итог эпизода обновления, одинаковый для всех участников.
type outcome struct {
	token string
	err   error
}

// ticket — место участника в очереди эпизода. ready получает итог ровно
// один раз; issued закрывается, когда участник отправил повтор (или
// отказался от него), после чего итог получает следующий в очереди.
type ticket struct {
	ready  chan outcome
	issued chan struct{}
	once   sync.Once
}

func newTicket() *ticket {
	return &ticket{
		ready:  make(chan outcome, 1),
		issued: make(chan struct{}),
	}
}

func (t *ticket) release() { t.once.Do(func() { close(t.issued) }) }

// wait блокируется до итога эпизода или отмены ctx. При отмене участник
// освобождает своё место, чтобы не задерживать очередь.
func (t *ticket) wait(ctx context.Context) (string, error) {
	select {
	case out := <-t.ready:
		return out.token, out.err
	case <-ctx.Done():
		t.release()
		return "", ctx.Err()
	}
}

// refresher — конечный автомат idle/refreshing с FIFO-очередью участников.
// Принадлежит экземпляру Client: у независимых клиентов независимые эпизоды.
//
// Инварианты:
//   - в состоянии refreshing выполняется ровно один refresh-вызов;
//   - участники получают итог в порядке вступления в очередь, и при успехе
//     следующий получает токен только после отправки повтора предыдущим;
//   - после завершения эпизода автомат снова idle, очередь пуста;
//   - 401, пришедший после неудачного эпизода на запрос, отправленный до
//     него, получает ошибку этого эпизода без нового refresh.
type refresher struct {
	mu    sync.Mutex
	state refreshState
	queue []*ticket
	// gen растёт с каждым завершённым эпизодом; lastErr — итог последнего.
	gen     uint64
	lastErr error

	// handoff ограничивает ожидание отправки повтора одним участником;
	// 0 — defaultHandoff.
	handoff time.Duration

	// run выполняет refresh-вызов и запись результата в хранилище.
	run func(ctx context.Context) (string, error)
	// current возвращает access-токен из хранилища.
	current func(ctx context.Context) (string, bool)
}

// generation возвращает число завершённых эпизодов. Запрос запоминает его
// до отправки и передаёт в join.
func (r *refresher) generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.gen
}

// join ставит участника в очередь. stale — токен, отвергнутый сервером,
// sent — generation() на момент отправки запроса.
//
// Если эпизод не идёт, а в хранилище уже лежит другой токен, значит
// обновление завершилось, пока запрос был в пути: участник сразу получает
// свежий токен без нового refresh. Если же за это время эпизод завершился
// отказом, участник получает ту же ошибку. force отключает обе проверки.
func (r *refresher) join(ctx context.Context, stale string, sent uint64, force bool) *ticket {
	t := newTicket()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == stateRefreshing {
		r.queue = append(r.queue, t)
		return t
	}

	if !force {
		if cur, ok := r.current(ctx); ok && cur != stale {
			t.ready <- outcome{token: cur}
			return t
		}
		if sent != r.gen && r.lastErr != nil {
			t.ready <- outcome{err: r.lastErr}
			return t
		}
	}

	r.state = stateRefreshing
	r.queue = append(r.queue, t)

	// Эпизод переживает отмену контекста участника, который его начал.
	go r.episode(context.WithoutCancel(ctx))

	return t
}

func (r *refresher) episode(ctx context.Context) {
	tok, err := r.run(ctx)

	r.mu.Lock()
	queue := r.queue
	r.queue = nil
	r.state = stateIdle
	r.gen++
	r.lastErr = err
	r.mu.Unlock()

	handoff := r.handoff
	if handoff <= 0 {
		handoff = defaultHandoff
	}

	out := outcome{token: tok, err: err}
	for _, t := range queue {
		t.ready <- out
		if err != nil {
			continue
		}

		// Зависшее соединение одного участника не держит остальных дольше handoff.
		timer := time.NewTimer(handoff)
		select {
		case <-t.issued:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// pending возвращает длину очереди текущего эпизода.
func (r *refresher) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.queue)
}
