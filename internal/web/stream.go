package web

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"taskboard-cli/internal/model"

	"github.com/starfederation/datastar-go/datastar"
)

const mainSelector = "#taskboard-main"

type resourceKey struct {
	kind string
	id   string
}

func projectKey(projectID int64) resourceKey {
	return resourceKey{kind: "project", id: strconv.FormatInt(projectID, 10)}
}

func (k resourceKey) String() string {
	kind := strings.TrimSpace(k.kind)
	id := strings.TrimSpace(k.id)
	if id == "" {
		return kind
	}
	return kind + ":" + id
}

type resourceHub struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func newResourceHub() *resourceHub {
	return &resourceHub{subs: map[chan struct{}]struct{}{}}
}

func (h *resourceHub) subscribe() (ch chan struct{}, cancel func()) {
	ch = make(chan struct{}, 8)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
		close(ch)
	}
}

func (h *resourceHub) broadcast() {
	h.mu.Lock()
	for ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	h.mu.Unlock()
}

func (h *resourceHub) subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// resourceBroadcaster fans snapshot changes out to SSE subscribers. Changes made through
// this server broadcast directly; changes made elsewhere are picked up by polling.
type resourceBroadcaster struct {
	mu   sync.Mutex
	hubs map[string]*resourceHub
	fps  map[string]string

	stopOnce sync.Once
	stopCh   chan struct{}
}

func newResourceBroadcaster() *resourceBroadcaster {
	return &resourceBroadcaster{
		hubs:   map[string]*resourceHub{},
		fps:    map[string]string{},
		stopCh: make(chan struct{}),
	}
}

func (b *resourceBroadcaster) Stop() {
	if b == nil {
		return
	}
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
}

func (b *resourceBroadcaster) hubFor(key resourceKey) *resourceHub {
	k := key.String()
	b.mu.Lock()
	h := b.hubs[k]
	if h == nil {
		h = newResourceHub()
		b.hubs[k] = h
	}
	b.mu.Unlock()
	return h
}

// watched returns the keys that currently have at least one subscriber.
func (b *resourceBroadcaster) watched() []resourceKey {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []resourceKey
	for k, h := range b.hubs {
		if h.subscribers() == 0 {
			continue
		}
		kind, id, _ := strings.Cut(k, ":")
		out = append(out, resourceKey{kind: kind, id: id})
	}
	return out
}

// noteFingerprint records fp for key and reports whether it differs from the last one seen.
// The first observation is not a change.
func (b *resourceBroadcaster) noteFingerprint(key resourceKey, fp string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := key.String()
	prev, seen := b.fps[k]
	b.fps[k] = fp
	return seen && prev != fp
}

func (b *resourceBroadcaster) currentFingerprint(key resourceKey) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fps[key.String()]
}

func fingerprint(tasks []model.Task) string {
	raw, err := json.Marshal(tasks)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:8])
}

// watchLoop polls every watched project and wakes its subscribers when the task list changed.
func (s *Server) watchLoop(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	bc := s.broadcaster()
	for {
		select {
		case <-bc.stopCh:
			return
		case <-t.C:
		}
		for _, key := range bc.watched() {
			pid, err := strconv.ParseInt(key.id, 10, 64)
			if key.kind != "project" || err != nil {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
			_, fp, err := s.load(ctx, pid)
			cancel()
			if err != nil {
				s.logger.Printf("op=poll project=%d err=%v", pid, err)
				continue
			}
			if bc.noteFingerprint(key, fp) {
				bc.hubFor(key).broadcast()
			}
		}
	}
}

// notify records the snapshot a mutation produced and wakes the project's subscribers.
func (s *Server) notify(projectID int64, tasks []model.Task) {
	bc := s.broadcaster()
	key := projectKey(projectID)
	bc.noteFingerprint(key, fingerprint(tasks))
	bc.hubFor(key).broadcast()
}

func (s *Server) serveDatastarElementsStream(w http.ResponseWriter, r *http.Request, key resourceKey, render func() (string, error)) {
	sse := datastar.NewSSE(w, r)

	bc := s.broadcaster()
	_ = sse.MarshalAndPatchSignals(map[string]any{"version": bc.currentFingerprint(key)})

	ch, cancel := bc.hubFor(key).subscribe()
	defer cancel()

	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-sse.Context().Done():
			return
		case <-bc.stopCh:
			return
		case <-keepAlive.C:
			_ = sse.PatchSignals([]byte(`{}`))
		case <-ch:
			html, err := render()
			if err != nil {
				_ = sse.ExecuteScript(fmt.Sprintf(`console.error(%q)`, err.Error()))
				continue
			}
			if strings.TrimSpace(html) == "" {
				continue
			}
			_ = sse.PatchElements(html, datastar.WithSelector(mainSelector), datastar.WithMode(datastar.ElementPatchModeOuter))
			_ = sse.MarshalAndPatchSignals(map[string]any{"version": bc.currentFingerprint(key)})
		}
	}
}
