package media

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	puts    []string
	deletes []string
}

func (f *fakeS3) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, *input.Key)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestUploadKeyShape(t *testing.T) {
	fake := &fakeS3{}
	store := NewWithClient(fake, "chorewheel", "https://media.example.com")

	key, err := store.Upload(context.Background(), 12, "proof.jpg", "image/jpeg", strings.NewReader("data"), 4)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasPrefix(key, "evidence/12/") {
		t.Errorf("key = %q, want evidence/12/ prefix", key)
	}
	if !strings.HasSuffix(key, ".jpg") {
		t.Errorf("key = %q, want .jpg suffix", key)
	}
	if len(fake.puts) != 1 || fake.puts[0] != key {
		t.Errorf("puts = %v, want [%q]", fake.puts, key)
	}
}

func TestUploadDisabled(t *testing.T) {
	store := New(Config{})
	if store.Enabled() {
		t.Fatal("empty config should disable uploads")
	}
	if _, err := store.Upload(context.Background(), 1, "a.jpg", "image/jpeg", strings.NewReader("x"), 1); err == nil {
		t.Error("upload on disabled store should fail")
	}
}

func TestURL(t *testing.T) {
	store := NewWithClient(&fakeS3{}, "chorewheel", "https://media.example.com/")

	if got := store.URL("evidence/3/abc.jpg"); got != "https://media.example.com/evidence/3/abc.jpg" {
		t.Errorf("URL = %q", got)
	}
	if got := store.URL(""); got != "" {
		t.Errorf("URL(empty key) = %q, want empty", got)
	}
}

func TestURLFallsBackToEndpoint(t *testing.T) {
	store := New(Config{
		Endpoint:  "https://s3.example.com",
		Bucket:    "chorewheel",
		AccessKey: "k",
		SecretKey: "s",
	})
	if got := store.URL("evidence/1/x.mp4"); got != "https://s3.example.com/chorewheel/evidence/1/x.mp4" {
		t.Errorf("URL = %q", got)
	}
}

func TestDelete(t *testing.T) {
	fake := &fakeS3{}
	store := NewWithClient(fake, "chorewheel", "")

	if err := store.Delete(context.Background(), "evidence/1/a.jpg"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(context.Background(), ""); err != nil {
		t.Fatalf("delete empty key: %v", err)
	}
	if len(fake.deletes) != 1 {
		t.Errorf("deletes = %v, want one entry", fake.deletes)
	}
}
