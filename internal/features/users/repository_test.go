package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProactiveWindowOpen(t *testing.T) {
	// Флаги идут от новых к старым: true = сообщение было инициативой
	// ассистента (ai_response заполнен).
	tests := []struct {
		name   string
		window int
		recent []bool
		open   bool
	}{
		{
			name:   "одна инициатива из двух последних — можно писать",
			window: 2,
			recent: []bool{true, false},
			open:   true,
		},
		{
			name:   "обе последние от ассистента — инициатива подавлена",
			window: 2,
			recent: []bool{true, true},
			open:   false,
		},
		{
			name:   "последние три от ассистента при окне 3 — подавлена",
			window: 3,
			recent: []bool{true, true, true},
			open:   false,
		},
		{
			name:   "пользователь писал последним — можно",
			window: 2,
			recent: []bool{false, true},
			open:   true,
		},
		{
			name:   "тред короче окна — можно",
			window: 3,
			recent: []bool{true, true},
			open:   true,
		},
		{
			name:   "единственное сообщение от ассистента при окне 2 — можно",
			window: 2,
			recent: []bool{true},
			open:   true,
		},
		{
			name:   "хвост длиннее окна: считаются только первые window",
			window: 2,
			recent: []bool{true, true, false, false},
			open:   false,
		},
		{
			name:   "ровно window инициатив, дальше пользовательские — подавлена",
			window: 2,
			recent: []bool{true, true, false},
			open:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.open, proactiveWindowOpen(tt.window, tt.recent))
		})
	}
}
