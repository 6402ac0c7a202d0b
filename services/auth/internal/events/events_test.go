package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	got []SessionEvent
	err error
}

func (r *recordingPublisher) Publish(_ context.Context, ev SessionEvent) error {
	r.got = append(r.got, ev)
	return r.err
}

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	ok := &recordingPublisher{}
	bad := &recordingPublisher{err: boom}

	err := Multi{ok, nil, bad, Nop{}}.Publish(context.Background(), New(TypeLogin, "7", "admin"))
	assert.ErrorIs(t, err, boom)
	require.Len(t, ok.got, 1)
	require.Len(t, bad.got, 1)
	assert.Equal(t, TypeLogin, ok.got[0].Type)
	assert.Equal(t, "7", ok.got[0].PrincipalID)
	assert.NotEmpty(t, ok.got[0].ID)

	assert.NoError(t, Multi{}.Publish(context.Background(), New(TypeLogout, "7", "")))
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	p := NewKafkaPublisher([]string{"localhost:9092"}, "auth_events")
	p.w = w

	ev := New(TypeRefresh, "42", "user")
	ev.JTI = "jti-1"
	require.NoError(t, p.Publish(context.Background(), ev))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, []byte("42"), msg.Key)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "refresh", string(msg.Headers[0].Value))

	var decoded SessionEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, ev.ID, decoded.ID)
	assert.Equal(t, "jti-1", decoded.JTI)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WrapsDeliveryError(t *testing.T) {
	t.Parallel()

	p := NewKafkaPublisher([]string{"localhost:9092"}, "auth_events")
	p.w = &fakeWriter{err: kafka.LeaderNotAvailable}

	err := p.Publish(context.Background(), New(TypeLogin, "1", "user"))
	assert.ErrorIs(t, err, kafka.LeaderNotAvailable)
	assert.Contains(t, err.Error(), "kafka: delivery failed")
}

func newFakeES(t *testing.T, indexStatus int) (*httptest.Server, *[]string, *[]SessionEvent) {
	t.Helper()

	var mu sync.Mutex
	var paths []string
	var docs []SessionEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/" {
			_, _ = io.WriteString(w, `{"version":{"number":"9.0.0"},"tagline":"You Know, for Search"}`)
			return
		}

		mu.Lock()
		defer mu.Unlock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		var ev SessionEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err == nil {
			docs = append(docs, ev)
		}
		w.WriteHeader(indexStatus)
		_, _ = io.WriteString(w, `{"result":"created"}`)
	}))
	t.Cleanup(srv.Close)
	return srv, &paths, &docs
}

func TestAuditSink_IndexesEvent(t *testing.T) {
	t.Parallel()

	srv, paths, docs := newFakeES(t, http.StatusCreated)
	client, err := NewESClient(context.Background(), ESConfig{URL: srv.URL})
	require.NoError(t, err)

	sink := NewAuditSink(client, "auth-audit")
	ev := New(TypeLogoutAll, "3", "teacher")
	require.NoError(t, sink.Publish(context.Background(), ev))

	require.Len(t, *paths, 1)
	assert.Equal(t, "PUT /auth-audit/_doc/"+ev.ID, (*paths)[0])
	require.Len(t, *docs, 1)
	assert.Equal(t, TypeLogoutAll, (*docs)[0].Type)
}

func TestAuditSink_ErrorStatus(t *testing.T) {
	t.Parallel()

	srv, _, _ := newFakeES(t, http.StatusServiceUnavailable)
	client, err := NewESClient(context.Background(), ESConfig{URL: srv.URL})
	require.NoError(t, err)

	err = NewAuditSink(client, "auth-audit").Publish(context.Background(), New(TypeLogin, "1", "user"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestAuditSink_HungServerTimesOut(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/" {
			_, _ = io.WriteString(w, `{"version":{"number":"9.0.0"}}`)
			return
		}
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	client, err := NewESClient(context.Background(), ESConfig{URL: srv.URL})
	require.NoError(t, err)
	sink := NewAuditSink(client, "auth-audit")
	sink.timeout = 50 * time.Millisecond

	start := time.Now()
	err = sink.Publish(context.Background(), New(TypeLogin, "1", "user"))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
