package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		topic   string
		want    bool
	}{
		{"order.created", "order.created", true},
		{"order.created", "order.cancel", false},
		{"order.*", "order.created", true},
		{"order.*", "order.failed_payment", true},
		{"order.*", "order", false},
		{"order.*", "order.a.b", false},
		{"*.created", "order.created", true},
		{"*.created", "payment.created", true},
		{"*", "order", true},
		{"*", "order.created", false},
		{"#", "order", true},
		{"#", "order.created", true},
		{"#", "", true},
		{"order.#", "order", true},
		{"order.#", "order.created", true},
		{"order.#", "order.a.b.c", true},
		{"order.#", "payment.created", false},
		{"#.failed", "payment.failed", true},
		{"#.failed", "order.payment.failed", true},
		{"#.failed", "payment.processed", false},
		{"order.*.#", "order.created", true},
		{"order.*.#", "order", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.topic, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.pattern, tt.topic))
		})
	}
}
