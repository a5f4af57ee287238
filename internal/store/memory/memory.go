package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"livrocaixa/internal/core"
	"livrocaixa/internal/store"
)

// Store keeps every record in process memory. It enforces the same
// referential rules as the SQL store.
type Store struct {
	mu          sync.Mutex
	accounts    map[string]core.Account
	categories  map[string]core.Category
	txs         []core.Transaction
	attachments []core.Attachment
	now         func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		accounts:   make(map[string]core.Account),
		categories: make(map[string]core.Category),
		now:        time.Now,
	}
}

// NewFromFiles seeds accounts from seed_accounts.txt (one name per line) and
// categories from seed_categories.txt ("income:Name" or "expense:Name").
func NewFromFiles(base string) *Store {
	s := New()
	accounts := readLines(filepath.Join(base, "seed_accounts.txt"))
	if len(accounts) == 0 {
		accounts = []string{"Caixa", "Banco"}
	}
	for _, name := range accounts {
		_, _ = s.CreateAccount(context.Background(), name)
	}
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		cats = []string{"income:Dízimos", "income:Ofertas", "expense:Manutenção", "expense:Contas"}
	}
	for _, line := range cats {
		kind, name, ok := strings.Cut(line, ":")
		if !ok || !core.Kind(kind).Valid() {
			continue
		}
		_, _ = s.CreateCategory(context.Background(), name, core.Kind(kind))
	}
	return s
}

func (s *Store) Close() error { return nil }

func (s *Store) ListAccounts(_ context.Context, onlyActive bool) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if onlyActive && !a.Active {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetAccount(_ context.Context, id string) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return core.Account{}, fmt.Errorf("account %s: %w", id, core.ErrNotFound)
	}
	return a, nil
}

func (s *Store) CreateAccount(_ context.Context, name string) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := core.Account{ID: uuid.NewString(), Name: strings.TrimSpace(name), Active: true}
	s.accounts[a.ID] = a
	return a, nil
}

func (s *Store) SetAccountActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("account %s: %w", id, core.ErrNotFound)
	}
	a.Active = active
	s.accounts[id] = a
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return fmt.Errorf("account %s: %w", id, core.ErrNotFound)
	}
	for _, t := range s.txs {
		if t.AccountID == id {
			return fmt.Errorf("account %s: %w", id, core.ErrReferenced)
		}
	}
	delete(s.accounts, id)
	return nil
}

func (s *Store) ListCategories(_ context.Context, onlyActive bool) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if onlyActive && !c.Active {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, id string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	return c, nil
}

func (s *Store) CreateCategory(_ context.Context, name string, kind core.Kind) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := core.Category{ID: uuid.NewString(), Name: strings.TrimSpace(name), Kind: kind, Active: true}
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) SetCategoryActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	c.Active = active
	s.categories[id] = c
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	for _, t := range s.txs {
		if t.CategoryID == id {
			return fmt.Errorf("category %s: %w", id, core.ErrReferenced)
		}
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) ListTransactions(_ context.Context, f store.TxFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	like := strings.ToLower(strings.TrimSpace(f.PaymentMethodLike))
	var out []core.Transaction
	for _, t := range s.txs {
		if !f.From.IsZero() && t.Date.Before(f.From) {
			continue
		}
		if !f.Before.IsZero() && !t.Date.Before(f.Before) {
			continue
		}
		if f.AccountID != "" && t.AccountID != f.AccountID {
			continue
		}
		if f.CategoryID != "" && t.CategoryID != f.CategoryID {
			continue
		}
		if f.Kind != "" && t.Kind != f.Kind {
			continue
		}
		if like != "" && !strings.Contains(strings.ToLower(t.PaymentMethod), like) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Date.Compare(out[j].Date); c != 0 {
			return c < 0
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.txs {
		if t.ID == id {
			return t, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
}

func (s *Store) InsertTransactions(_ context.Context, txs []core.Transaction) ([]string, error) {
	for i, t := range txs {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range txs {
		if _, ok := s.accounts[t.AccountID]; !ok {
			return nil, fmt.Errorf("row %d account %s: %w", i, t.AccountID, core.ErrNotFound)
		}
		if _, ok := s.categories[t.CategoryID]; !ok {
			return nil, fmt.Errorf("row %d category %s: %w", i, t.CategoryID, core.ErrNotFound)
		}
	}
	ids := make([]string, len(txs))
	for i, t := range txs {
		t.ID = uuid.NewString()
		if t.CreatedAt.IsZero() {
			// nanosecond offsets keep batch order stable
			t.CreatedAt = s.now().Add(time.Duration(i))
		}
		s.txs = append(s.txs, t)
		ids[i] = t.ID
	}
	return ids, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.txs {
		if t.ID == tx.ID {
			tx.CreatedAt = t.CreatedAt
			tx.CreatedBy = t.CreatedBy
			s.txs[i] = tx
			return nil
		}
	}
	return fmt.Errorf("transaction %s: %w", tx.ID, core.ErrNotFound)
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attachments {
		if a.TransactionID == id {
			return fmt.Errorf("transaction %s: %w", id, core.ErrReferenced)
		}
	}
	for i, t := range s.txs {
		if t.ID == id {
			s.txs = append(s.txs[:i], s.txs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
}

func (s *Store) MaxDocNo(_ context.Context, from, before core.Date) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	best := ""
	for _, t := range s.txs {
		if t.Kind != core.Expense || t.DocNo == "" {
			continue
		}
		if t.Date.Before(from) || !t.Date.Before(before) {
			continue
		}
		if len(t.DocNo) > len(best) || (len(t.DocNo) == len(best) && t.DocNo > best) {
			best = t.DocNo
		}
	}
	return best, nil
}

func (s *Store) InsertAttachment(_ context.Context, a core.Attachment) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for _, t := range s.txs {
		if t.ID == a.TransactionID {
			found = true
			break
		}
	}
	if !found {
		return "", fmt.Errorf("transaction %s: %w", a.TransactionID, core.ErrNotFound)
	}
	a.ID = uuid.NewString()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	s.attachments = append(s.attachments, a)
	return a.ID, nil
}

func (s *Store) ListAttachments(_ context.Context, transactionID string) ([]core.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Attachment
	for _, a := range s.attachments {
		if a.TransactionID == transactionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) GetAttachment(_ context.Context, id string) (core.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attachments {
		if a.ID == id {
			return a, nil
		}
	}
	return core.Attachment{}, fmt.Errorf("attachment %s: %w", id, core.ErrNotFound)
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
