package storage

import (
	"testing"

	"github.com/intellect4all/bptreekv/common"
	"github.com/intellect4all/bptreekv/common/testutil"
)

// TestResourceLimiterGatesPageAllocation exercises testutil.ResourceLimiter
// as callers are expected to use it: as an external guard in front of
// Store.NewPage, not something the store enforces itself. A budget of 3
// pages admits exactly 3 allocations before AllocDisk starts refusing.
func TestResourceLimiterGatesPageAllocation(t *testing.T) {
	s := newTestStore(t, 1)
	limiter := testutil.NewResourceLimiter(3*int64(s.pageSize), 1<<20)

	admitted := 0
	for i := 0; i < 5; i++ {
		if err := limiter.AllocDisk(int64(s.pageSize)); err != nil {
			if err != common.ErrDiskFull {
				t.Fatalf("AllocDisk: unexpected error %v", err)
			}
			continue
		}
		if _, err := s.NewPage([]byte("x")); err != nil {
			t.Fatalf("NewPage: %v", err)
		}
		admitted++
	}
	if admitted != 3 {
		t.Fatalf("expected the limiter to admit exactly 3 of 5 allocations, got %d", admitted)
	}

	limiter.FreeDisk(int64(s.pageSize))
	if err := limiter.AllocDisk(int64(s.pageSize)); err != nil {
		t.Fatalf("expected AllocDisk to succeed after FreeDisk made room: %v", err)
	}
	if limiter.DiskUsed() != 3*int64(s.pageSize) {
		t.Fatalf("DiskUsed = %d, want %d", limiter.DiskUsed(), 3*int64(s.pageSize))
	}
}
