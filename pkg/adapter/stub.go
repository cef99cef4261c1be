package adapter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jamfkit/core/pkg/catalog"
)

// StubAPI is a generated-looking, in-memory implementation of the full
// catalog surface against two fake dialect backends, standing in for the
// real device-management REST API (out of scope per spec.md §1). It backs
// both demo and adapter tests.
type StubAPI struct {
	mu   sync.Mutex
	data map[string][]map[string]any // category -> records, each with an "id"
	seq  int
}

// NewStubAPI seeds a small, representative dataset across the catalog's
// categories.
func NewStubAPI() *StubAPI {
	s := &StubAPI{data: make(map[string][]map[string]any)}
	s.seed("computers", map[string]any{"name": "MBP-001", "serialNumber": "C02ABCDEF"})
	s.seed("computers", map[string]any{"name": "MBP-002", "serialNumber": "C02FEDCBA"})
	s.seed("mobiledevices", map[string]any{"name": "iPhone-01", "udid": "UDID-1"})
	s.seed("policies", map[string]any{"name": "Install Chrome"})
	s.seed("scripts", map[string]any{"name": "cleanup.sh"})
	s.seed("profiles", map[string]any{"name": "Wifi Profile"})
	return s
}

func (s *StubAPI) seed(category string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	rec := map[string]any{"id": strconv.Itoa(s.seq)}
	for k, v := range fields {
		rec[k] = v
	}
	s.data[category] = append(s.data[category], rec)
}

// Classic returns the Transport view used for classic-dialect calls.
func (s *StubAPI) Classic() Transport { return dialectTransport{s: s, dialect: DialectClassic} }

// Modern returns the Transport view used for modern-dialect calls.
func (s *StubAPI) Modern() Transport { return dialectTransport{s: s, dialect: DialectModern} }

// AuthBackend returns a stub token issuer: any non-empty credential pair
// succeeds.
func (s *StubAPI) AuthBackend() AuthBackend { return stubAuthBackend{} }

type stubAuthBackend struct{}

func (stubAuthBackend) AcquireBearer(_ context.Context, username, password string) (string, time.Duration, error) {
	if username == "" || password == "" {
		return "", 0, fmt.Errorf("missing basic credentials")
	}
	return "stub-bearer-" + username, 30 * time.Minute, nil
}

func (stubAuthBackend) AcquireOAuth(_ context.Context, clientID, clientSecret string) (string, time.Duration, error) {
	if clientID == "" || clientSecret == "" {
		return "", 0, fmt.Errorf("missing oauth credentials")
	}
	return "stub-oauth-" + clientID, 20 * time.Minute, nil
}

type dialectTransport struct {
	s       *StubAPI
	dialect Dialect
}

func (t dialectTransport) Invoke(ctx context.Context, method string, args []any, authHeader string) (any, error) {
	if authHeader == "" {
		return nil, &StatusError{Dialect: t.dialect, Status: 401, Err: fmt.Errorf("missing auth header")}
	}
	entry, ok := catalog.Lookup(method)
	if !ok {
		return nil, &StatusError{Dialect: t.dialect, Status: 404, Err: fmt.Errorf("unknown method %q", method)}
	}

	switch {
	case method == "runAdvancedSearch":
		return t.s.list(entry.Category), nil
	case strings.HasPrefix(method, "getAll"):
		return t.s.list(entry.Category), nil
	case strings.HasPrefix(method, "search"):
		return t.s.search(entry.Category, args), nil
	case strings.HasPrefix(method, "get") && strings.HasSuffix(method, "Details"):
		return t.s.getDetails(t.dialect, entry.Category, args)
	case strings.HasPrefix(method, "create"):
		return t.s.create(entry.Category, args), nil
	case strings.HasPrefix(method, "update"):
		return t.s.update(t.dialect, entry.Category, args)
	case strings.HasPrefix(method, "delete"):
		return t.s.delete(t.dialect, entry.Category, args)
	case entry.Classification == catalog.Command:
		return map[string]any{"status": "ok", "method": method}, nil
	default:
		return t.s.list(entry.Category), nil
	}
}

func (s *StubAPI) list(category string) []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]any, 0, len(s.data[category]))
	for _, rec := range s.data[category] {
		out = append(out, cloneRecord(rec))
	}
	return out
}

func (s *StubAPI) search(category string, args []any) []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	query := ""
	if len(args) > 0 {
		query = fmt.Sprintf("%v", args[0])
	}
	var out []any
	for _, rec := range s.data[category] {
		if name, ok := rec["name"].(string); ok && strings.Contains(strings.ToLower(name), strings.ToLower(query)) {
			out = append(out, cloneRecord(rec))
		}
	}
	return out
}

func (s *StubAPI) getDetails(dialect Dialect, category string, args []any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := argID(args)
	for _, rec := range s.data[category] {
		if rec["id"] == id {
			return cloneRecord(rec), nil
		}
	}
	return nil, &StatusError{Dialect: dialect, Status: 404, Err: fmt.Errorf("%s %q not found", category, id)}
}

func (s *StubAPI) create(category string, args []any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	rec := map[string]any{"id": strconv.Itoa(s.seq)}
	if len(args) > 0 {
		if payload, ok := args[0].(map[string]any); ok {
			for k, v := range payload {
				rec[k] = v
			}
		}
	}
	s.data[category] = append(s.data[category], rec)
	return cloneRecord(rec)
}

func (s *StubAPI) update(dialect Dialect, category string, args []any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := argID(args)
	for _, rec := range s.data[category] {
		if rec["id"] == id {
			if len(args) > 1 {
				if payload, ok := args[1].(map[string]any); ok {
					for k, v := range payload {
						rec[k] = v
					}
				}
			}
			return cloneRecord(rec), nil
		}
	}
	return nil, &StatusError{Dialect: dialect, Status: 404, Err: fmt.Errorf("%s %q not found", category, id)}
}

func (s *StubAPI) delete(dialect Dialect, category string, args []any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := argID(args)
	records := s.data[category]
	for i, rec := range records {
		if rec["id"] == id {
			s.data[category] = append(records[:i], records[i+1:]...)
			return map[string]any{"deleted": true, "id": id}, nil
		}
	}
	return nil, &StatusError{Dialect: dialect, Status: 404, Err: fmt.Errorf("%s %q not found", category, id)}
}

func argID(args []any) string {
	if len(args) == 0 {
		return ""
	}
	return fmt.Sprintf("%v", args[0])
}

func cloneRecord(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
