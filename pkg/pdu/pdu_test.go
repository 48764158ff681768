package pdu

import (
	"bytes"
	"testing"
)

func TestInviteRoundTrip(t *testing.T) {
	want := InvitePDU{AttentionDuration: 5}
	got, err := DecodeInvite(want.Encode())
	if err != nil {
		t.Fatalf("DecodeInvite: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestInviteTooShort(t *testing.T) {
	if _, err := DecodeInvite([]byte{byte(Invite)}); err != ErrTooShort {
		t.Fatalf("expected ErrTooShort, got %v", err)
	}
}

func TestCapabilitiesRoundTrip(t *testing.T) {
	want := CapabilitiesPDU{
		NumElements:     3,
		Algorithms:      0x0001,
		PublicKeyType:   0,
		StaticOOBType:   1,
		OutputOOBSize:   4,
		OutputOOBAction: 0x0008,
		InputOOBSize:    2,
		InputOOBAction:  0x0004,
	}
	encoded := want.Encode()
	if len(encoded) != CapabilitiesPDUSize {
		t.Fatalf("encoded length = %d, want %d", len(encoded), CapabilitiesPDUSize)
	}
	got, err := DecodeCapabilities(encoded)
	if err != nil {
		t.Fatalf("DecodeCapabilities: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestStartRoundTrip(t *testing.T) {
	want := StartPDU{
		Algorithm:  AlgorithmFIPSP256,
		PublicKey:  PublicKeyNoOOB,
		AuthMethod: AuthMethodOutputOOB,
		AuthAction: 3,
		AuthSize:   6,
	}
	got, err := DecodeStart(want.Encode())
	if err != nil {
		t.Fatalf("DecodeStart: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestPublicKeyRoundTrip(t *testing.T) {
	var want PublicKeyPDU
	for i := range want.X {
		want.X[i] = byte(i)
	}
	for i := range want.Y {
		want.Y[i] = byte(i + 100)
	}
	got, err := DecodePublicKey(want.Encode())
	if err != nil {
		t.Fatalf("DecodePublicKey: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestConfirmationRoundTrip(t *testing.T) {
	var want ConfirmationPDU
	for i := range want.Value {
		want.Value[i] = byte(i)
	}
	got, err := DecodeConfirmation(want.Encode())
	if err != nil {
		t.Fatalf("DecodeConfirmation: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestRandomRoundTrip(t *testing.T) {
	var want RandomPDU
	for i := range want.Value {
		want.Value[i] = byte(255 - i)
	}
	got, err := DecodeRandom(want.Encode())
	if err != nil {
		t.Fatalf("DecodeRandom: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestDataRoundTrip(t *testing.T) {
	var want DataPDU
	for i := range want.EncryptedData {
		want.EncryptedData[i] = byte(i)
	}
	for i := range want.MIC {
		want.MIC[i] = byte(i + 1)
	}
	got, err := DecodeData(want.Encode())
	if err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	rebuilt, err := NewDataPDU(want.CiphertextAndMIC())
	if err != nil {
		t.Fatalf("NewDataPDU: %v", err)
	}
	if rebuilt != want {
		t.Fatalf("rebuilt %+v, want %+v", rebuilt, want)
	}
}

func TestFailedRoundTrip(t *testing.T) {
	want := FailedPDU{ErrorCode: FailedConfirmationFailed}
	got, err := DecodeFailed(want.Encode())
	if err != nil {
		t.Fatalf("DecodeFailed: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestInputCompleteAndCompleteRoundTrip(t *testing.T) {
	if _, err := DecodeInputComplete(InputCompletePDU{}.Encode()); err != nil {
		t.Fatalf("DecodeInputComplete: %v", err)
	}
	if _, err := DecodeComplete(CompletePDU{}.Encode()); err != nil {
		t.Fatalf("DecodeComplete: %v", err)
	}
}

func TestDecodeOpcode(t *testing.T) {
	op, err := DecodeOpcode([]byte{byte(Data)})
	if err != nil {
		t.Fatalf("DecodeOpcode: %v", err)
	}
	if op != Data {
		t.Fatalf("op = %v, want Data", op)
	}

	if _, err := DecodeOpcode([]byte{0x0A}); err != ErrUnknownOpcode {
		t.Fatalf("expected ErrUnknownOpcode, got %v", err)
	}
}

func TestProvisioningDataRoundTrip(t *testing.T) {
	want := ProvisioningData{
		NetKeyIndex:    0x0123,
		Flags:          0x01,
		IVIndex:        0xAABBCCDD,
		PrimaryAddress: 0x0001,
	}
	for i := range want.NetKey {
		want.NetKey[i] = byte(i)
	}

	encoded := want.Encode()
	got, err := DecodeProvisioningData(encoded[:])
	if err != nil {
		t.Fatalf("DecodeProvisioningData: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestConfirmationInputsMonotonicWrite(t *testing.T) {
	var ci ConfirmationInputs

	if ci.Complete() {
		t.Fatalf("expected incomplete transcript before any writes")
	}
	if _, err := ci.Bytes(); err != ErrConfirmationInputsIncomplete {
		t.Fatalf("expected ErrConfirmationInputsIncomplete, got %v", err)
	}

	if err := ci.SetInvite(0x05); err != nil {
		t.Fatalf("SetInvite: %v", err)
	}

	var caps [CapabilitiesParamSize]byte
	for i := range caps {
		caps[i] = byte(i + 1)
	}
	if err := ci.SetCapabilities(caps); err != nil {
		t.Fatalf("SetCapabilities: %v", err)
	}

	var start [StartParamSize]byte
	for i := range start {
		start[i] = byte(i + 10)
	}
	if err := ci.SetStart(start); err != nil {
		t.Fatalf("SetStart: %v", err)
	}

	var provPub, devPub [PublicKeyParamSize]byte
	for i := range provPub {
		provPub[i] = byte(i + 20)
		devPub[i] = byte(i + 84)
	}
	if err := ci.SetProvisionerPublicKey(provPub); err != nil {
		t.Fatalf("SetProvisionerPublicKey: %v", err)
	}

	// Writing the same field twice must be rejected, even before the
	// transcript is otherwise complete.
	if err := ci.SetProvisionerPublicKey(provPub); err != ErrConfirmationInputsAlreadyWritten {
		t.Fatalf("expected ErrConfirmationInputsAlreadyWritten, got %v", err)
	}

	if ci.Complete() {
		t.Fatalf("expected incomplete transcript before device public key")
	}

	if err := ci.SetDevicePublicKey(devPub); err != nil {
		t.Fatalf("SetDevicePublicKey: %v", err)
	}

	if !ci.Complete() {
		t.Fatalf("expected complete transcript after all five writes")
	}

	got, err := ci.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if len(got) != ConfirmationInputsSize {
		t.Fatalf("len(got) = %d, want %d", len(got), ConfirmationInputsSize)
	}

	var want [ConfirmationInputsSize]byte
	want[0] = 0x05
	copy(want[1:12], caps[:])
	copy(want[12:17], start[:])
	copy(want[17:81], provPub[:])
	copy(want[81:145], devPub[:])

	if !bytes.Equal(got[:], want[:]) {
		t.Fatalf("got %x, want %x", got, want)
	}
}
