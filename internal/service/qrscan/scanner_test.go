package qrscan

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/apperr"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/model"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/camera"
)

type stubVerifier struct {
	mu    sync.Mutex
	known map[string]string
	err   error
	calls []string
}

func (v *stubVerifier) VerifyAccount(_ context.Context, account string) (model.AccountVerification, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, account)
	if v.err != nil {
		return model.AccountVerification{}, v.err
	}
	name, ok := v.known[account]
	return model.AccountVerification{Exists: ok, Name: name, FullName: name}, nil
}

type recorder struct {
	mu  sync.Mutex
	got []model.Details
}

func (r *recorder) onScan(d model.Details) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, d)
	return nil
}

func (r *recorder) calls() []model.Details {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Details(nil), r.got...)
}

func newScanner(t *testing.T, cam *camera.Camera) (*Scanner, *recorder, *stubVerifier) {
	t.Helper()

	v := &stubVerifier{known: map[string]string{
		"9999999999": "Asha Rao",
		"1234567890": "Demo User",
	}}
	rec := &recorder{}
	return New(Config{Camera: cam, Verifier: v}, rec.onScan), rec, v
}

func qrPNG(t *testing.T, payload string) []byte {
	t.Helper()

	img, err := Encode(payload, 256)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func blank() image.Image {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func TestHandleDecoded_CombinedPayloadSkipsAmountView(t *testing.T) {
	t.Parallel()

	s, rec, _ := newScanner(t, nil)
	s.SetNote("lunch")

	require.NoError(t, s.HandleDecoded(context.Background(), "9999999999|75.00"))

	got := rec.calls()
	require.Len(t, got, 1)
	require.Equal(t, "9999999999", got[0].Recipient)
	require.Equal(t, "Asha Rao", got[0].Name)
	require.True(t, decimal.NewFromInt(75).Equal(got[0].Amount))
	require.Equal(t, "lunch", got[0].Note)
	require.Equal(t, ModeDone, s.View().Mode)
}

func TestHandleDecoded_AccountOnlyAsksForAmount(t *testing.T) {
	t.Parallel()

	s, rec, _ := newScanner(t, nil)

	require.NoError(t, s.HandleDecoded(context.Background(), "1234567890"))
	v := s.View()
	require.Equal(t, ModeAmount, v.Mode)
	require.Equal(t, "Demo User", v.Name)
	require.Empty(t, rec.calls())

	s.SetAmount("600000")
	require.ErrorIs(t, s.SubmitAmount(), apperr.ErrInvalidAmount)
	require.Equal(t, "Amount cannot exceed ₹5,00,000", s.View().AmountError)
	require.Empty(t, rec.calls())

	s.SetAmount("0")
	require.ErrorIs(t, s.SubmitAmount(), apperr.ErrInvalidAmount)

	s.SetAmount("1,00,000")
	require.Equal(t, "1,00,000", s.View().Amount)
	require.Empty(t, s.View().AmountError)
	require.NoError(t, s.SubmitAmount())

	got := rec.calls()
	require.Len(t, got, 1)
	require.True(t, decimal.NewFromInt(100000).Equal(got[0].Amount))
}

func TestHandleDecoded_CombinedOutOfBoundsAmount(t *testing.T) {
	t.Parallel()

	s, rec, _ := newScanner(t, nil)

	err := s.HandleDecoded(context.Background(), "9999999999|900000")
	require.ErrorIs(t, err, apperr.ErrInvalidAmount)
	require.Equal(t, ModeAmount, s.View().Mode)
	require.Empty(t, rec.calls())
}

func TestHandleDecoded_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		text    string
		verrErr error
		want    error
		wantMsg string
	}{
		{name: "empty", text: "", want: apperr.ErrInvalidQR, wantMsg: "Invalid QR code format"},
		{name: "empty_account", text: "|50", want: apperr.ErrInvalidQR, wantMsg: "Invalid QR code format"},
		{name: "not_digits", text: "upi://pay?pa=x", want: apperr.ErrInvalidQR, wantMsg: "Invalid QR code format"},
		{name: "unknown_account", text: "5555555555|10", want: apperr.ErrAccountNotFound, wantMsg: "Account not found"},
		{name: "verifier_down", text: "9999999999|10", verrErr: errors.New("dial tcp: refused"), want: apperr.ErrVerificationUnavailable, wantMsg: "Error verifying account"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, rec, v := newScanner(t, nil)
			v.err = tt.verrErr

			err := s.HandleDecoded(context.Background(), tt.text)
			require.ErrorIs(t, err, tt.want)
			require.Equal(t, tt.wantMsg, s.View().AccountError)
			require.Equal(t, ModeIdle, s.View().Mode)
			require.Empty(t, rec.calls())
		})
	}
}

func TestSubmitAmount_BeforeScan(t *testing.T) {
	t.Parallel()

	s, _, _ := newScanner(t, nil)
	require.ErrorIs(t, s.SubmitAmount(), apperr.ErrWrongStep)
}

func TestPrefill_ReopensAmountView(t *testing.T) {
	t.Parallel()

	s, rec, v := newScanner(t, nil)
	s.Prefill(model.Details{Recipient: "9999999999", Name: "Ravi", Amount: decimal.RequireFromString("75.5"), Note: "lunch"})

	view := s.View()
	require.Equal(t, ModeAmount, view.Mode)
	require.Equal(t, "9999999999", view.Account)
	require.Equal(t, "75.50", view.Amount)
	require.Equal(t, "lunch", view.Note)

	require.NoError(t, s.SubmitAmount())
	got := rec.calls()
	require.Len(t, got, 1)
	require.Equal(t, "9999999999", got[0].Recipient)
	require.Equal(t, "Ravi", got[0].Name)
	require.True(t, decimal.RequireFromString("75.5").Equal(got[0].Amount))

	v.mu.Lock()
	defer v.mu.Unlock()
	require.Empty(t, v.calls, "a prefilled recipient is not verified again")
}

func TestDemo(t *testing.T) {
	t.Parallel()

	s, rec, _ := newScanner(t, nil)
	require.NoError(t, s.Demo(context.Background()))

	got := rec.calls()
	require.Len(t, got, 1)
	require.Equal(t, "1234567890", got[0].Recipient)
	require.True(t, decimal.NewFromInt(100).Equal(got[0].Amount))
}

func TestDecodeImage(t *testing.T) {
	t.Parallel()

	s, rec, _ := newScanner(t, nil)
	require.NoError(t, s.DecodeImage(context.Background(), bytes.NewReader(qrPNG(t, "9999999999|75.00"))))
	require.Len(t, rec.calls(), 1)
}

func TestDecodeImage_Failures(t *testing.T) {
	t.Parallel()

	var blankPNG bytes.Buffer
	require.NoError(t, png.Encode(&blankPNG, blank()))

	for name, body := range map[string][]byte{
		"not_an_image": []byte("hello"),
		"no_qr":        blankPNG.Bytes(),
	} {
		body := body
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s, rec, _ := newScanner(t, nil)
			err := s.DecodeImage(context.Background(), bytes.NewReader(body))
			require.ErrorIs(t, err, apperr.ErrImageDecode)
			require.Equal(t, "QR scan from image failed.", s.View().ScanError)
			require.Empty(t, rec.calls())
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	img, err := Encode(Payload("123456789012", "250.50"), 0)
	require.NoError(t, err)
	text, err := Decode(img)
	require.NoError(t, err)
	require.Equal(t, "123456789012|250.50", text)

	_, err = Decode(blank())
	require.Error(t, err)
}

// --- camera path ---

type frames struct {
	mu     sync.Mutex
	imgs   []image.Image
	block  bool
	closed bool
}

func (f *frames) Devices(context.Context) ([]camera.Device, error) {
	return []camera.Device{{ID: "0", Label: "front"}, {ID: "1", Label: "Back Camera"}}, nil
}

func (f *frames) Open(context.Context, camera.Device) (camera.Stream, error) { return f, nil }

func (f *frames) Next(ctx context.Context) (image.Image, error) {
	f.mu.Lock()
	if len(f.imgs) > 0 {
		img := f.imgs[0]
		f.imgs = f.imgs[1:]
		f.mu.Unlock()
		return img, nil
	}
	block := f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return nil, io.EOF
}

func (f *frames) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *frames) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestScanCamera_DecodesAndReleases(t *testing.T) {
	t.Parallel()

	qr, err := Encode("9999999999|75.00", 256)
	require.NoError(t, err)

	src := &frames{imgs: []image.Image{blank(), blank(), qr}}
	cam := camera.New(src, src, nil, nil)
	s, rec, _ := newScanner(t, cam)

	require.NoError(t, s.ScanCamera(context.Background()))
	require.Len(t, rec.calls(), 1)
	require.True(t, src.isClosed())
	require.False(t, cam.InUse())
}

func TestScanCamera_StreamEnds(t *testing.T) {
	t.Parallel()

	src := &frames{imgs: []image.Image{blank()}}
	cam := camera.New(src, src, nil, nil)
	s, rec, _ := newScanner(t, cam)

	err := s.ScanCamera(context.Background())
	require.ErrorIs(t, err, apperr.ErrCameraAccess)
	require.Equal(t, ModeIdle, s.View().Mode)
	require.NotEmpty(t, s.View().ScanError)
	require.Empty(t, rec.calls())
	require.False(t, cam.InUse())
}

func TestScanCamera_CancelReleasesCamera(t *testing.T) {
	t.Parallel()

	src := &frames{block: true}
	cam := camera.New(src, src, nil, nil)
	s, _, _ := newScanner(t, cam)

	done := make(chan error, 1)
	go func() { done <- s.ScanCamera(context.Background()) }()

	require.Eventually(t, func() bool { return s.View().Mode == ModeScanning && cam.InUse() }, time.Second, 5*time.Millisecond)
	require.Equal(t, "Back Camera", s.View().Device)
	require.ErrorIs(t, s.ScanCamera(context.Background()), apperr.ErrBusy)

	s.Cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scan did not stop after Cancel")
	}
	require.True(t, src.isClosed())
	require.False(t, cam.InUse())
	require.Equal(t, ModeIdle, s.View().Mode)
}

func TestScanCamera_NoCamera(t *testing.T) {
	t.Parallel()

	s, _, _ := newScanner(t, nil)
	require.ErrorIs(t, s.ScanCamera(context.Background()), apperr.ErrNoCamera)
	require.Equal(t, "No camera found", s.View().ScanError)
	require.True(t, s.View().CameraMissing)
}

func TestNew_NilDepsPanic(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() { New(Config{}, func(model.Details) error { return nil }) })
	require.Panics(t, func() { New(Config{Verifier: &stubVerifier{}}, nil) })
}
