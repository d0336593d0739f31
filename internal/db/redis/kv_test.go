package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/prodsearch/internal/db"
)

func TestGet(t *testing.T) {
	tests := []struct {
		name     string
		reply    rueidis.RedisResult
		want     string
		notFound bool
		dbErr    bool
	}{
		{"hit", mock.Result(mock.RedisBlobString("\x00\x00\x80\x3f")), "\x00\x00\x80\x3f", false, false},
		{"miss", mock.Result(mock.RedisNil()), "", true, false},
		{"network", mock.ErrorResult(context.DeadlineExceeded), "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, c := newMockStore(t)
			c.EXPECT().Do(gomock.Any(), mock.Match("GET", "emb:k")).Return(tt.reply)

			got, err := s.Get(context.Background(), "emb:k")
			if errors.Is(err, db.ErrKeyNotFound) != tt.notFound {
				t.Errorf("not-found = %v, want %v (err %v)", !tt.notFound, tt.notFound, err)
			}
			if isDBError(err) != tt.dbErr {
				t.Errorf("db.Error = %v, want %v (err %v)", !tt.dbErr, tt.dbErr, err)
			}
			if string(got) != tt.want {
				t.Errorf("value = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSetWithTTL(t *testing.T) {
	tests := []struct {
		name string
		ttl  time.Duration
		cmd  []string
	}{
		{"expiring", 90 * time.Second, []string{"SET", "emb:k", "v", "EX", "90"}},
		{"zero keeps forever", 0, []string{"SET", "emb:k", "v"}},
		{"negative keeps forever", -time.Second, []string{"SET", "emb:k", "v"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, c := newMockStore(t)
			c.EXPECT().Do(gomock.Any(), mock.Match(tt.cmd...)).Return(mock.Result(mock.RedisString("OK")))

			if err := s.SetWithTTL(context.Background(), "emb:k", []byte("v"), tt.ttl); err != nil {
				t.Fatalf("SetWithTTL: %v", err)
			}
		})
	}
}

func TestSet(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("SET", "k", "v")).Return(mock.ErrorResult(errors.New("READONLY")))

	if err := s.Set(context.Background(), "k", []byte("v")); !isDBError(err) {
		t.Errorf("error = %v, want db.Error", err)
	}
}
