package repository

import (
	"context"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

const invoiceSequenceKeyPrefix = "billing:invoice_seq:"

// nextSequenceScript lifts the counter to at least ARGV[1] and then increments it,
// so a counter that was lost or reset never hands out a number already in use.
var nextSequenceScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local floor = tonumber(ARGV[1])
if cur < floor then
	redis.call('SET', KEYS[1], floor)
end
return redis.call('INCR', KEYS[1])
`)

// RedisInvoiceSequence hands out per-year invoice sequence numbers from Redis
type RedisInvoiceSequence struct {
	client *redis.Client
}

// NewRedisInvoiceSequence creates a Redis backed sequence
func NewRedisInvoiceSequence(client *redis.Client) *RedisInvoiceSequence {
	return &RedisInvoiceSequence{client: client}
}

// Next returns the next sequence number for year, strictly greater than floor
func (s *RedisInvoiceSequence) Next(ctx context.Context, year int, floor int) (int, error) {
	key := invoiceSequenceKeyPrefix + strconv.Itoa(year)
	n, err := nextSequenceScript.Run(ctx, s.client, []string{key}, floor).Int()
	if err != nil {
		return 0, errors.Wrapf(err, "invoice sequence for %d", year)
	}
	return n, nil
}

// MemoryInvoiceSequence is the in-process counterpart of RedisInvoiceSequence
type MemoryInvoiceSequence struct {
	mu       sync.Mutex
	counters map[int]int
}

// NewMemoryInvoiceSequence creates an in-process sequence
func NewMemoryInvoiceSequence() *MemoryInvoiceSequence {
	return &MemoryInvoiceSequence{counters: make(map[int]int)}
}

// Next returns the next sequence number for year, strictly greater than floor
func (s *MemoryInvoiceSequence) Next(ctx context.Context, year int, floor int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.counters[year] < floor {
		s.counters[year] = floor
	}
	s.counters[year]++
	return s.counters[year], nil
}
