package compute

import (
	"errors"
	"strings"
	"testing"

	"github.com/spindle-gpu/spindle/driver"
)

func TestStatusErrorFormat(t *testing.T) {
	err := statusErr("clCreateBuffer", driver.OutOfResources, "size %d", 4096)
	want := "compute: clCreateBuffer: CL_OUT_OF_RESOURCES (size 4096)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	err = statusErr("clFinish", driver.InvalidOperation, "")
	want = "compute: clFinish: CL_INVALID_OPERATION"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIsStatus(t *testing.T) {
	err := statusErr("clCreateBuffer", driver.OutOfResources, "")
	if !IsStatus(err, driver.OutOfResources) {
		t.Error("IsStatus did not match the carried status")
	}
	if IsStatus(err, driver.InvalidValue) {
		t.Error("IsStatus matched a different status")
	}
	if !IsStatus(errors.Join(errors.New("outer"), err), driver.OutOfResources) {
		t.Error("IsStatus did not see through a joined error")
	}
	if IsStatus(usagef("op", "nope"), driver.InvalidValue) {
		t.Error("IsStatus matched a usage error")
	}
	if IsStatus(nil, driver.Success) {
		t.Error("IsStatus matched nil")
	}
}

func TestMaybe(t *testing.T) {
	v, err := Maybe(42, statusErr("clGetDeviceInfo", driver.InvalidDevice, ""))
	if v != 0 || err != nil {
		t.Errorf("Maybe(status error) = %d, %v, want 0, nil", v, err)
	}

	ue := usagef("describe", "bad call")
	v, err = Maybe(42, ue)
	if v != 42 || !errors.Is(err, ue) {
		t.Errorf("Maybe(usage error) = %d, %v, want value and error kept", v, err)
	}

	s, err := Maybe("name", nil)
	if s != "name" || err != nil {
		t.Errorf("Maybe(nil error) = %q, %v", s, err)
	}
}

func TestUsageWrapKeepsSentinel(t *testing.T) {
	err := usageWrap("mapped bytes", ErrReleased)
	if !errors.Is(err, ErrReleased) {
		t.Error("wrapped sentinel lost")
	}
	if !strings.Contains(err.Error(), "mapped bytes") {
		t.Errorf("Error() = %q, want the operation named", err)
	}
}

func TestBuildErrorFormat(t *testing.T) {
	be := &BuildError{
		Status: driver.BuildProgramFailure,
		Logs: []DeviceLog{
			{Device: "dev0", Log: "error: unbalanced braces at end of source\n"},
			{Device: "dev1", Log: "   \n"},
		},
	}
	got := be.Error()
	if !strings.HasPrefix(got, "compute: program build failed: CL_BUILD_PROGRAM_FAILURE") {
		t.Errorf("Error() = %q, wrong prefix", got)
	}
	if !strings.Contains(got, "[dev0]\nerror: unbalanced braces at end of source") {
		t.Errorf("Error() = %q, missing dev0 transcript", got)
	}
	if strings.Contains(got, "dev1") {
		t.Errorf("Error() = %q, blank transcript should be omitted", got)
	}
}
