package services

import (
	"strconv"
	"sync"

	"budgetcal/internal/cache"
	"budgetcal/internal/calendar"
	"budgetcal/internal/core"
)

const resourceMonthlyBudget = "monthlyBudget"

// MonthCache holds computed monthly budgets. Balances carry forward, so a
// change in one month also stales every later month.
//
// Every invalidation bumps a generation. A load captures the generation
// before reading and only stores its result if no invalidation landed in
// between.
type MonthCache struct {
	store *cache.Store[core.MonthlyBudget]

	mu  sync.Mutex
	gen uint64
}

func NewMonthCache(store *cache.Store[core.MonthlyBudget]) *MonthCache {
	return &MonthCache{store: store}
}

func (c *MonthCache) get(ym calendar.YearMonth) (core.MonthlyBudget, bool) {
	if c == nil {
		return core.MonthlyBudget{}, false
	}
	return c.store.Get(resourceMonthlyBudget, ym.Year, ym.Month)
}

func (c *MonthCache) generation() uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// set stores b unless the cache was invalidated since gen was read.
func (c *MonthCache) set(ym calendar.YearMonth, b core.MonthlyBudget, gen uint64) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.store.Set(b, resourceMonthlyBudget, ym.Year, ym.Month)
	return true
}

// invalidateFrom drops the cached months at or after the earliest of months.
func (c *MonthCache) invalidateFrom(months ...calendar.YearMonth) int {
	if c == nil || len(months) == 0 {
		return 0
	}
	from := months[0]
	for _, m := range months[1:] {
		if before(m, from) {
			from = m
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	return c.store.InvalidateMatching(resourceMonthlyBudget, func(p []string) bool {
		if len(p) != 2 {
			return true
		}
		y, errY := strconv.Atoi(p[0])
		m, errM := strconv.Atoi(p[1])
		if errY != nil || errM != nil {
			return true
		}
		return !before(calendar.YearMonth{Year: y, Month: m}, from)
	})
}

func (c *MonthCache) invalidateAll() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	return c.store.InvalidateResource(resourceMonthlyBudget)
}

func before(a, b calendar.YearMonth) bool {
	return a.Year < b.Year || (a.Year == b.Year && a.Month < b.Month)
}

func yearMonthOf(dateKey string) calendar.YearMonth {
	y, m, _ := core.YearMonthOf(dateKey)
	return calendar.YearMonth{Year: y, Month: m}
}
