// storage — хранилище dev-сервера в памяти процесса: пользователи,
// статьи, избранное и заметки. Данные живут до перезапуска.
package storage

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/aihub-client/internal/models"
)

var (
	// ErrNotFound — запись не найдена или принадлежит другому пользователю.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email, избранное).
	ErrAlreadyExists = errors.New("already exists")
)

// UserRecord — пользователь вместе с хэшем пароля.
type UserRecord struct {
	models.User
	PasswordHash string
}

// Memory — потокобезопасное хранилище в памяти.
type Memory struct {
	mu        sync.RWMutex
	users     map[string]*UserRecord
	byEmail   map[string]string
	papers    map[string]models.Paper
	order     []string
	favorites map[string]map[string]models.Favorite // user -> paper -> favorite
	notes     map[string]models.Note
	now       func() time.Time
}

// NewMemory создаёт хранилище с набором демонстрационных статей.
func NewMemory() *Memory {
	m := &Memory{
		users:     make(map[string]*UserRecord),
		byEmail:   make(map[string]string),
		papers:    make(map[string]models.Paper),
		favorites: make(map[string]map[string]models.Favorite),
		notes:     make(map[string]models.Note),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, p := range seedPapers() {
		m.papers[p.ID] = p
		m.order = append(m.order, p.ID)
	}

	return m
}

func (m *Memory) stamp() string { return m.now().Format(time.RFC3339) }

// CreateUser сохраняет пользователя; email должен быть уникален.
func (m *Memory) CreateUser(username, email, passwordHash string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byEmail[email]; ok {
		return models.User{}, ErrAlreadyExists
	}

	ts := m.stamp()
	rec := &UserRecord{
		User: models.User{
			ID:        uuid.NewString(),
			Username:  username,
			Email:     email,
			Role:      "user",
			CreatedAt: ts,
			UpdatedAt: ts,
		},
		PasswordHash: passwordHash,
	}
	m.users[rec.ID] = rec
	m.byEmail[email] = rec.ID

	return rec.User, nil
}

func (m *Memory) UserByEmail(email string) (UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[email]
	if !ok {
		return UserRecord{}, ErrNotFound
	}

	return *m.users[id], nil
}

func (m *Memory) UserByID(id string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}

	return rec.User, nil
}

// Papers возвращает страницу статей, отфильтрованных по подстроке в
// заголовке или аннотации.
func (m *Memory) Papers(search string, page, pageSize int) models.Page[models.Paper] {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var items []models.Paper
	for _, id := range m.order {
		p := m.papers[id]
		if matches(p, search) {
			items = append(items, p)
		}
	}

	return paginate(items, page, pageSize)
}

// SearchPapers — то же, что Papers, но без пагинации и с лимитом.
func (m *Memory) SearchPapers(q string, limit int) []models.Paper {
	out := make([]models.Paper, 0, limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, id := range m.order {
		if len(out) == limit {
			break
		}
		if p := m.papers[id]; matches(p, q) {
			out = append(out, p)
		}
	}

	return out
}

func (m *Memory) Paper(id string) (models.Paper, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.papers[id]
	if !ok {
		return models.Paper{}, ErrNotFound
	}

	return p, nil
}

func (m *Memory) PaperByArxivID(arxivID string) (models.Paper, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.papers {
		if p.ArxivID != nil && *p.ArxivID == arxivID {
			return p, nil
		}
	}

	return models.Paper{}, ErrNotFound
}

// AddFavorite добавляет статью в избранное пользователя.
func (m *Memory) AddFavorite(userID, paperID string) (models.Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.papers[paperID]; !ok {
		return models.Favorite{}, ErrNotFound
	}

	favs := m.favorites[userID]
	if favs == nil {
		favs = make(map[string]models.Favorite)
		m.favorites[userID] = favs
	}
	if _, ok := favs[paperID]; ok {
		return models.Favorite{}, ErrAlreadyExists
	}

	f := models.Favorite{
		ID:           uuid.NewString(),
		UserID:       userID,
		TargetID:     paperID,
		FavoriteType: "paper",
		CreatedAt:    m.stamp(),
	}
	favs[paperID] = f

	return f, nil
}

func (m *Memory) RemoveFavorite(userID, paperID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.favorites[userID][paperID]; !ok {
		return ErrNotFound
	}
	delete(m.favorites[userID], paperID)

	return nil
}

// FavoriteStatus сообщает, в избранном ли статья у пользователя, и сколько
// пользователей добавили её в избранное.
func (m *Memory) FavoriteStatus(userID, paperID string) (models.FavoriteStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.papers[paperID]; !ok {
		return models.FavoriteStatus{}, ErrNotFound
	}

	var st models.FavoriteStatus
	for uid, favs := range m.favorites {
		if _, ok := favs[paperID]; ok {
			st.FavoriteCount++
			if uid == userID {
				st.IsFavorited = true
			}
		}
	}

	return st, nil
}

// FavoritePapers возвращает избранные статьи пользователя.
func (m *Memory) FavoritePapers(userID string) []models.Paper {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Paper
	for _, id := range m.order {
		if _, ok := m.favorites[userID][id]; ok {
			out = append(out, m.papers[id])
		}
	}

	return out
}

// CreateNote сохраняет заметку пользователя.
func (m *Memory) CreateNote(userID string, in models.NoteCreate) models.Note {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.stamp()
	n := models.Note{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     in.Title,
		Content:   in.Content,
		Tags:      m.tags(in.Tags),
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if in.PaperID != "" {
		pid := in.PaperID
		n.PaperID = &pid
	}
	m.notes[n.ID] = n

	return n
}

// Notes — страница заметок пользователя, новые первыми.
func (m *Memory) Notes(userID, search string, page, pageSize int) models.Page[models.Note] {
	m.mu.RLock()
	var items []models.Note
	for _, n := range m.notes {
		if n.UserID != userID {
			continue
		}
		if search != "" && !containsFold(n.Title, search) && !containsFold(n.Content, search) {
			continue
		}
		items = append(items, n)
	}
	m.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt == items[j].CreatedAt {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt > items[j].CreatedAt
	})

	return paginate(items, page, pageSize)
}

func (m *Memory) Note(userID, id string) (models.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.notes[id]
	if !ok || n.UserID != userID {
		return models.Note{}, ErrNotFound
	}

	return n, nil
}

// UpdateNote применяет частичное обновление.
func (m *Memory) UpdateNote(userID, id string, in models.NoteUpdate) (models.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.notes[id]
	if !ok || n.UserID != userID {
		return models.Note{}, ErrNotFound
	}

	if in.Title != nil {
		n.Title = *in.Title
	}
	if in.Content != nil {
		n.Content = *in.Content
	}
	if in.PaperID != nil {
		pid := *in.PaperID
		n.PaperID = &pid
	}
	if in.Tags != nil {
		n.Tags = m.tags(in.Tags)
	}
	n.UpdatedAt = m.stamp()
	m.notes[id] = n

	return n, nil
}

func (m *Memory) DeleteNote(userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.notes[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	delete(m.notes, id)

	return nil
}

func (m *Memory) tags(names []string) []models.Tag {
	out := make([]models.Tag, 0, len(names))
	for _, name := range names {
		out = append(out, models.Tag{ID: name, Name: name, CreatedAt: m.stamp()})
	}

	return out
}

func matches(p models.Paper, q string) bool {
	if q == "" {
		return true
	}
	if containsFold(p.Title, q) {
		return true
	}

	return p.Abstract != nil && containsFold(*p.Abstract, q)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// Пагинация по умолчанию.
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func paginate[T any](items []T, page, pageSize int) models.Page[T] {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	total := len(items)
	from := min((page-1)*pageSize, total)
	to := min(from+pageSize, total)

	out := models.Page[T]{
		Items:      items[from:to],
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
	if out.Items == nil {
		out.Items = []T{}
	}

	return out
}
