package island

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wormmap/internal/domain"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	s := httptest.NewServer(handler)
	return NewClient(s.URL, "", 5*time.Second), s
}

func TestFetchMachines(t *testing.T) {
	t.Run("indexes by machine id", func(t *testing.T) {
		c, s := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/machines" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			w.Write([]byte(`[
				{"id": 1, "hostname": "island", "island": true, "network_interfaces": ["10.0.0.1/24"]},
				{"id": 2, "hostname": "victim", "operating_system": "linux"}
			]`))
		})
		defer s.Close()

		machines, err := c.FetchMachines(context.Background())
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if len(machines) != 2 {
			t.Fatalf("expected 2 machines, got %d", len(machines))
		}
		if !machines[1].Island {
			t.Error("expected machine 1 to be the island")
		}
		if machines[2].OperatingSystem != "linux" {
			t.Errorf("unexpected os: %q", machines[2].OperatingSystem)
		}
	})

	t.Run("last record wins on duplicate keys", func(t *testing.T) {
		c, s := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[
				{"id": 1, "hostname": "stale"},
				{"id": 1, "hostname": "fresh"}
			]`))
		})
		defer s.Close()

		machines, err := c.FetchMachines(context.Background())
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if len(machines) != 1 {
			t.Fatalf("expected 1 machine, got %d", len(machines))
		}
		if machines[1].Hostname != "fresh" {
			t.Errorf("expected later record to win, got %q", machines[1].Hostname)
		}
	})

	t.Run("drops records missing the key field", func(t *testing.T) {
		c, s := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[
				{"hostname": "no-id"},
				{"id": 3, "hostname": "ok"}
			]`))
		})
		defer s.Close()

		machines, err := c.FetchMachines(context.Background())
		if err != nil {
			t.Fatalf("expected best-effort indexing, got error: %v", err)
		}
		if len(machines) != 1 {
			t.Fatalf("expected 1 machine, got %d", len(machines))
		}
		if machines[3].Hostname != "ok" {
			t.Errorf("valid record lost: %+v", machines)
		}
	})

	t.Run("empty body yields empty mapping", func(t *testing.T) {
		for name, body := range map[string]string{"array": `[]`, "null": `null`, "nothing": ``} {
			t.Run(name, func(t *testing.T) {
				c, s := newTestClient(func(w http.ResponseWriter, r *http.Request) {
					w.Write([]byte(body))
				})
				defer s.Close()

				machines, err := c.FetchMachines(context.Background())
				if err != nil {
					t.Fatalf("fetch: %v", err)
				}
				if len(machines) != 0 {
					t.Errorf("expected empty mapping, got %d entries", len(machines))
				}
			})
		}
	})

	t.Run("http error surfaces as FetchError", func(t *testing.T) {
		c, s := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "island on fire", http.StatusInternalServerError)
		})
		defer s.Close()

		_, err := c.FetchMachines(context.Background())
		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			t.Fatalf("expected *FetchError, got %T: %v", err, err)
		}
		if fetchErr.Status != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", fetchErr.Status)
		}
		if fetchErr.Endpoint != "/api/machines" {
			t.Errorf("unexpected endpoint: %s", fetchErr.Endpoint)
		}
	})
}

func TestFetchNetNodes(t *testing.T) {
	c, s := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/nodes" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`[{"machine_id": 1, "connections": {"2": ["cc"]}}]`))
	})
	defer s.Close()

	nodes, err := c.FetchNetNodes(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !nodes[1].Connections[2].Has(domain.CommTypeCC) {
		t.Errorf("connection tags lost: %+v", nodes)
	}
}

func TestFetchAgents(t *testing.T) {
	c, s := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/agents" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`[{
			"id": "8f9a1c3e-27b1-4b85-9a4a-111111111111",
			"machine_id": 2,
			"parent_id": null,
			"start_time": "2023-01-01T00:00:00Z",
			"stop_time": null
		}]`))
	})
	defer s.Close()

	agents, err := c.FetchAgents(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	agent, ok := agents[2]
	if !ok {
		t.Fatalf("expected agent keyed by machine id, got %+v", agents)
	}
	if !agent.Running() {
		t.Error("nil stop_time should mean running")
	}
	if agent.ParentID != nil {
		t.Errorf("expected nil parent id, got %v", agent.ParentID)
	}
	if agent.StartTime.Year() != 2023 {
		t.Errorf("start_time not parsed: %v", agent.StartTime)
	}
}

func TestFetchPropagationEvents(t *testing.T) {
	c, s := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/agent-events" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("type") != "PropagationEvent" || q.Get("success") != "true" {
			t.Errorf("missing filter params: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`[{"target": "10.0.0.5", "success": true, "type": "PropagationEvent"}]`))
	})
	defer s.Close()

	events, err := c.FetchPropagationEvents(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if _, ok := events["10.0.0.5"]; !ok {
		t.Errorf("expected event keyed by target, got %+v", events)
	}
}

func TestAuthToken(t *testing.T) {
	var gotAuth string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}))
	defer s.Close()

	c := NewClient(s.URL, "sekrit", time.Second)
	if _, err := c.FetchMachines(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotAuth != "Bearer sekrit" {
		t.Errorf("expected bearer token, got %q", gotAuth)
	}
}
