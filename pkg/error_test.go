package pkg

import (
	"errors"
	"fmt"
	"testing"
)

func TestCategory_String(t *testing.T) {
	tests := []struct {
		category Category
		want     string
	}{
		{CategoryIdentity, "identity"},
		{CategoryTransport, "transport"},
		{CategoryProtocol, "protocol"},
		{CategoryBoot, "boot"},
		{CategoryFatal, "fatal"},
		{Category(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.category.String(); got != tt.want {
				t.Errorf("Category.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPhase_String(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseNone, "none"},
		{PhaseSend, "send"},
		{PhaseGet, "get"},
		{PhaseData, "data"},
		{PhaseBoot, "boot"},
		{PhaseResync, "resync"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.phase.String(); got != tt.want {
				t.Errorf("Phase.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "full",
			err: &Error{
				Category: CategoryTransport,
				Backend:  "serial",
				Phase:    PhaseSend,
				Step:     "wait-ack",
				DSP:      0,
				Err:      ErrTimeout,
			},
			want: "transport [serial] send/wait-ack dsp 0: handshake timeout",
		},
		{
			name: "identity",
			err:  &Error{Category: CategoryIdentity, DSP: -1, Err: ErrDuplicateIndex},
			want: "identity: duplicate adapter index",
		},
		{
			name: "fatal",
			err:  &Error{Category: CategoryFatal, DSP: -1},
			want: "fatal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	err := fmt.Errorf("exchange: %w", &Error{
		Category: CategoryProtocol,
		DSP:      1,
		Err:      ErrResponseMismatch,
	})

	if !errors.Is(err, ErrResponseMismatch) {
		t.Error("errors.Is() did not find wrapped sentinel")
	}
	if got := CategoryOf(err); got != CategoryProtocol {
		t.Errorf("CategoryOf() = %v, want %v", got, CategoryProtocol)
	}
	if got := CategoryOf(ErrTimeout); got != 0 {
		t.Errorf("CategoryOf(sentinel) = %v, want 0", got)
	}
}

func TestSentinelErrors(t *testing.T) {
	// Verify all sentinel errors are distinct
	errs := []error{
		ErrTimeout,
		ErrBridge,
		ErrResponseMismatch,
		ErrResponseSize,
		ErrDataSize,
		ErrProtocol,
		ErrCrashed,
		ErrBadBusID,
		ErrDuplicateIndex,
		ErrBadIndex,
		ErrNoAdapter,
		ErrNotFound,
		ErrFormat,
		ErrChecksum,
		ErrVerify,
		ErrMemoryTest,
		ErrPLD,
		ErrBridgeConfig,
		ErrInvalidParameter,
		ErrNotSupported,
		ErrNoMemory,
		ErrClosed,
	}

	for i, err1 := range errs {
		if err1 == nil {
			t.Errorf("error %d is nil", i)
			continue
		}
		for j, err2 := range errs {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("error %d and %d are equal", i, j)
			}
		}
	}
}
