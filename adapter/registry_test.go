package adapter

import (
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/ardnew/softhpi/hal"
	"github.com/ardnew/softhpi/pkg"
)

func stub(name string, index uint16) *Adapter {
	return &Adapter{res: &hal.BusResource{Name: name}, index: index, limit: DefaultCrashThreshold}
}

func TestRegistryAddFind(t *testing.T) {
	r := NewRegistry()
	a := stub("a", 3)
	if err := r.Add(a); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if got := r.Find(3); got != a {
		t.Errorf("Find(3) = %v, want %v", got, a)
	}
	if got := r.Find(4); got != nil {
		t.Errorf("Find(4) = %v, want nil", got)
	}
	if got := r.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestRegistryFindOutOfRange(t *testing.T) {
	r := NewRegistry()
	for _, i := range []int{-1, MaxAdapters, 1000} {
		if got := r.Find(i); got != nil {
			t.Errorf("Find(%d) = %v, want nil", i, got)
		}
	}
}

func TestRegistryDuplicateLeavesSlot(t *testing.T) {
	r := NewRegistry()
	first := stub("first", 0)
	if err := r.Add(first); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	err := r.Add(stub("second", 0))
	if !errors.Is(err, pkg.ErrDuplicateIndex) {
		t.Fatalf("Add() error = %v, want ErrDuplicateIndex", err)
	}
	if pkg.CategoryOf(err) != pkg.CategoryIdentity {
		t.Errorf("category = %v, want identity", pkg.CategoryOf(err))
	}
	if got := r.Find(0); got != first {
		t.Errorf("Find(0) = %s, want first", got.Name())
	}
	if got := r.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestRegistryBadIndex(t *testing.T) {
	r := NewRegistry()
	if err := r.Add(stub("far", MaxAdapters)); !errors.Is(err, pkg.ErrBadIndex) {
		t.Errorf("Add() error = %v, want ErrBadIndex", err)
	}
	if got := r.Len(); got != 0 {
		t.Errorf("Len() = %d, want 0", got)
	}
}

func TestRegistryDelete(t *testing.T) {
	r := NewRegistry()
	a := stub("a", 7)
	if err := r.Add(a); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := r.Delete(a); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got := r.Find(7); got != nil {
		t.Errorf("Find(7) after Delete = %v", got)
	}
	if err := r.Delete(a); !errors.Is(err, pkg.ErrNoAdapter) {
		t.Errorf("second Delete() error = %v, want ErrNoAdapter", err)
	}

	// The slot can be reused.
	b := stub("b", 7)
	if err := r.Add(b); err != nil {
		t.Fatalf("Add() after Delete error = %v", err)
	}
	if err := r.Delete(a); !errors.Is(err, pkg.ErrNoAdapter) {
		t.Errorf("Delete(stale) error = %v, want ErrNoAdapter", err)
	}
	if got := r.Find(7); got != b {
		t.Error("stale Delete removed the new adapter")
	}
}

func TestRegistryIndexes(t *testing.T) {
	r := NewRegistry()
	for _, i := range []uint16{9, 2, 15} {
		if err := r.Add(stub("x", i)); err != nil {
			t.Fatalf("Add(%d) error = %v", i, err)
		}
	}
	if got, want := r.Indexes(), []int{2, 9, 15}; !slices.Equal(got, want) {
		t.Errorf("Indexes() = %v, want %v", got, want)
	}
	list := r.Adapters()
	if len(list) != 3 || list[0].Index() != 2 || list[2].Index() != 15 {
		t.Errorf("Adapters() out of order")
	}
}

func TestRegistryConcurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := range MaxAdapters {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = r.Add(stub("x", uint16(i)))
		}()
		go func() {
			defer wg.Done()
			_ = r.Find(i)
		}()
	}
	wg.Wait()
	if got := r.Len(); got != MaxAdapters {
		t.Errorf("Len() = %d, want %d", got, MaxAdapters)
	}
}
