package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"conveyor/internal/domain"
)

type published struct {
	channel domain.Channel
	env     domain.Envelope
}

type fakeBus struct {
	published []published
	failOn    domain.Channel
}

func (b *fakeBus) Publish(_ context.Context, channel domain.Channel, env domain.Envelope) error {
	if b.failOn != "" && channel == b.failOn {
		return errors.New("bus unavailable")
	}
	b.published = append(b.published, published{channel: channel, env: env})
	return nil
}

func (b *fakeBus) last() published {
	if len(b.published) == 0 {
		return published{}
	}
	return b.published[len(b.published)-1]
}

func (b *fakeBus) on(channel domain.Channel) []domain.Envelope {
	var out []domain.Envelope
	for _, p := range b.published {
		if p.channel == channel {
			out = append(out, p.env)
		}
	}
	return out
}

type fakeLedger struct {
	seen      map[string]bool
	seenErr   error
	recordErr error
	records   []string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{seen: make(map[string]bool)}
}

func (l *fakeLedger) Seen(_ context.Context, id string) (bool, error) {
	if l.seenErr != nil {
		return false, l.seenErr
	}
	return l.seen[id], nil
}

func (l *fakeLedger) Record(_ context.Context, id string) error {
	if l.recordErr != nil {
		return l.recordErr
	}
	l.seen[id] = true
	l.records = append(l.records, id)
	return nil
}

type storedObject struct {
	bucket      string
	object      string
	data        []byte
	contentType string
}

type fakeStore struct {
	fetchData   []byte
	fetchStatus int
	fetchErr    error
	objects     map[string][]byte
	stored      []storedObject
	storeErr    error
	signErr     error
}

func (s *fakeStore) Fetch(_ context.Context, url string) ([]byte, int, error) {
	if s.fetchErr != nil {
		return nil, s.fetchStatus, s.fetchErr
	}
	return s.fetchData, 200, nil
}

func (s *fakeStore) FetchObject(_ context.Context, bucket, object string) ([]byte, error) {
	data, ok := s.objects[bucket+"/"+object]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (s *fakeStore) Store(_ context.Context, bucket, object string, data []byte, contentType string) error {
	if s.storeErr != nil {
		return s.storeErr
	}
	s.stored = append(s.stored, storedObject{bucket: bucket, object: object, data: data, contentType: contentType})
	return nil
}

func (s *fakeStore) SignDownload(_ context.Context, bucket, object string, _ time.Duration) (string, error) {
	if s.signErr != nil {
		return "", s.signErr
	}
	return fmt.Sprintf("https://signed.example.com/%s/%s", bucket, object), nil
}

type fakeRunner struct {
	output map[string]any
	err    error
	calls  []map[string]string
}

func (r *fakeRunner) Run(_ context.Context, args map[string]string) (map[string]any, error) {
	r.calls = append(r.calls, args)
	if r.err != nil {
		return nil, r.err
	}
	return r.output, nil
}

type fakeSecrets struct {
	values map[string]string
	err    error
}

func (s *fakeSecrets) Access(_ context.Context, name string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	v, ok := s.values[name]
	if !ok {
		return "", fmt.Errorf("secret %s not found", name)
	}
	return v, nil
}

type postedBody struct {
	url  string
	body any
}

type fakePoster struct {
	posts []postedBody
	err   error
}

func (p *fakePoster) Post(_ context.Context, url string, body any) error {
	if p.err != nil {
		return p.err
	}
	p.posts = append(p.posts, postedBody{url: url, body: body})
	return nil
}

type fakeRecords struct {
	created []domain.AnnotationRecord
	err     error
}

func (r *fakeRecords) Create(_ context.Context, rec domain.AnnotationRecord) error {
	if r.err != nil {
		return r.err
	}
	r.created = append(r.created, rec)
	return nil
}

func testEnvelope(kind domain.TaskKind) domain.Envelope {
	return domain.Envelope{
		ProjectID:        "proj-dev",
		TaskID:           "task123",
		SignedFileURL:    "https://x/input.json",
		BucketName:       "api-input-dev",
		TaskType:         kind,
		OutputURL:        "https://cb/x",
		InputDataType:    "json",
		DatasetReference: "used_dataset",
		ModelID:          "model-7",
	}
}
