package boot

import "testing"

type fakeRootConfig struct {
	reboot bool
}

func (f fakeRootConfig) RebootOnExit() bool { return f.reboot }

type fakeTripleFaulter struct{ faulted bool }

func (f *fakeTripleFaulter) TripleFault() { f.faulted = true }

type fakeVMHalter struct{ halted bool }

func (f *fakeVMHalter) VMHalt() { f.halted = true }

type fakeExitPort struct {
	wrote bool
	code  uint8
}

func (f *fakeExitPort) WriteExitCode(code uint8) {
	f.wrote = true
	f.code = code
}

func TestVMExitTripleFaultsWhenRebootRequested(t *testing.T) {
	tf := &fakeTripleFaulter{}
	halt := &fakeVMHalter{}
	port := &fakeExitPort{}

	VMExit(1, fakeRootConfig{reboot: true}, tf, halt, port)

	if !tf.faulted {
		t.Fatal("expected a triple fault when RebootOnExit is true")
	}
	if halt.halted || port.wrote {
		t.Fatal("reboot path must not also halt or write the exit port")
	}
}

func TestVMExitPrefersHaltOverExitPortWhenNoReboot(t *testing.T) {
	tf := &fakeTripleFaulter{}
	halt := &fakeVMHalter{}
	port := &fakeExitPort{}

	VMExit(7, fakeRootConfig{reboot: false}, tf, halt, port)

	if tf.faulted {
		t.Fatal("must not triple-fault when reboot is not requested")
	}
	if !halt.halted {
		t.Fatal("expected vm_halt to be invoked")
	}
	if port.wrote {
		t.Fatal("must not fall through to the exit port when a halt handler exists")
	}
}

func TestVMExitFallsBackToExitPortWhenNoHalter(t *testing.T) {
	tf := &fakeTripleFaulter{}
	port := &fakeExitPort{}

	VMExit(42, fakeRootConfig{reboot: false}, tf, nil, port)

	if tf.faulted {
		t.Fatal("must not triple-fault on the exit-port fallback path")
	}
	if !port.wrote || port.code != 42 {
		t.Fatalf("exit port = (wrote=%v, code=%d), want (true, 42)", port.wrote, port.code)
	}
}

func TestVMExitWithNilRootConfigTreatedAsNoReboot(t *testing.T) {
	tf := &fakeTripleFaulter{}
	port := &fakeExitPort{}

	VMExit(3, nil, tf, nil, port)

	if tf.faulted {
		t.Fatal("nil root config must not be treated as reboot-on-exit")
	}
	if !port.wrote || port.code != 3 {
		t.Fatal("nil root config with no halter should fall through to the exit port")
	}
}
