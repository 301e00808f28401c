package chat

import (
	"testing"

	"github.com/zoft-projects/OBbackend-sub002/internal/config"
)

func TestMemberBatchSize(t *testing.T) {
	cases := []struct {
		name       string
		configured int
		want       int
	}{
		{"configured value wins", 50, 50},
		{"zero falls back to default", 0, defaultMemberBatchSize},
		{"negative falls back to default", -1, defaultMemberBatchSize},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &config.Config{Chat: config.ChatDefaults{MemberBatchSize: tc.configured}}
			if got := memberBatchSize(cfg); got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}
