package mask

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"山田 太郎", "山〇 太〇"},
		{"山田　太郎様", "山〇 太〇 様"},
		{"佐藤さん", "佐〇 さん"},
		{"ゆいちゃん", "ゆ〇 ちゃん"},
		{"林", "林"},
		{"John Smith 君", "J〇〇〇 S〇〇〇〇 君"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Name(tt.in), "%q", tt.in)
	}
}
