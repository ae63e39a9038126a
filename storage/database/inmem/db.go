// Package inmemdb provides mutex-guarded in-memory repositories. They back
// the test suites and local hacking without a PostgreSQL instance.
package inmemdb

import (
	"strings"
	"sync"

	"github.com/kitabu/kitabu/core"
	"github.com/kitabu/kitabu/core/booking"
	"github.com/kitabu/kitabu/core/coach"
	"github.com/kitabu/kitabu/core/content"
	"github.com/kitabu/kitabu/core/enrollment"
	"github.com/kitabu/kitabu/core/lead"
	"github.com/kitabu/kitabu/core/settings"
	"github.com/kitabu/kitabu/core/user"
)

type (
	DB struct {
		lead       *leadTable
		coach      *coachTable
		group      *groupTable
		slot       *slotTable
		call       *callTable
		enrollment *enrollmentTable
		payment    *paymentTable
		content    *contentTable
		setting    *settingTable
		user       *userTable
	}

	leadTable struct {
		sync.RWMutex
		table map[string]*lead.Lead
	}
	coachTable struct {
		sync.RWMutex
		table map[string]*coach.Coach
	}
	groupTable struct {
		sync.RWMutex
		table map[string]*coach.Group
	}
	slotTable struct {
		sync.RWMutex
		table map[string]*booking.Slot
	}
	callTable struct {
		sync.RWMutex
		table map[string]*booking.Call
	}
	enrollmentTable struct {
		sync.RWMutex
		table map[string]*enrollment.Enrollment
	}
	paymentTable struct {
		sync.RWMutex
		table map[string]*enrollment.Payment
	}
	contentTable struct {
		sync.RWMutex
		table map[string]*content.Item
	}
	settingTable struct {
		sync.RWMutex
		table map[string]*settings.Setting
	}
	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}
)

func Open() (*DB, error) {
	db := &DB{
		lead:       &leadTable{table: make(map[string]*lead.Lead)},
		coach:      &coachTable{table: make(map[string]*coach.Coach)},
		group:      &groupTable{table: make(map[string]*coach.Group)},
		slot:       &slotTable{table: make(map[string]*booking.Slot)},
		call:       &callTable{table: make(map[string]*booking.Call)},
		enrollment: &enrollmentTable{table: make(map[string]*enrollment.Enrollment)},
		payment:    &paymentTable{table: make(map[string]*enrollment.Payment)},
		content:    &contentTable{table: make(map[string]*content.Item)},
		setting:    &settingTable{table: make(map[string]*settings.Setting)},
		user:       &userTable{table: make(map[string]*user.User)},
	}
	return db, nil
}

// paginate slices an already-ordered result set.
func paginate[T any](items []T, page core.Pagination) ([]T, int) {
	total := len(items)
	start := page.Offset()
	if start > total {
		start = total
	}
	end := start + page.Limit()
	if end > total {
		end = total
	}
	return items[start:end], total
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
