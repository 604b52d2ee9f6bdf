package recorder

import (
	"context"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedded-debugger/emulator-go/pkg/config"
	"github.com/embedded-debugger/emulator-go/pkg/emulator"
	"github.com/embedded-debugger/emulator-go/pkg/register"
	"github.com/embedded-debugger/emulator-go/pkg/wire"
)

type fakeWriter struct {
	points  []*write.Point
	flushes int
}

func (w *fakeWriter) WritePoint(p *write.Point) { w.points = append(w.points, p) }
func (w *fakeWriter) Flush()                    { w.flushes++ }

func testSamples(t *testing.T) []emulator.Sample {
	t.Helper()
	store, err := register.NewStore(
		register.Definition{Descriptor: register.Descriptor{
			ID: 1, Name: "Sine", FullName: "Sine", Size: 1, Type: register.TypeUint8, Access: wire.AccessRead,
		}},
		register.Definition{Descriptor: register.Descriptor{
			ID: 2, Name: "Blob", Offset: 4, Size: 2, Type: register.TypeUnknown, Access: wire.AccessRead,
		}},
	)
	require.NoError(t, err)
	sine, _ := store.ByID(1)
	blob, _ := store.ByID(2)
	return []emulator.Sample{
		{Channel: 0, Register: sine, Value: []byte{200}},
		{Channel: 1, Register: blob, Value: []byte{0xAB, 0xCD}},
	}
}

func TestObserveChannels(t *testing.T) {
	w := &fakeWriter{}
	r := New(w, Options{Tags: map[string]string{"serial": "EMU-0001"}})
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	r.ObserveChannels(at, testSamples(t))

	require.Len(t, w.points, 1)
	p := w.points[0]
	assert.Equal(t, DefaultMeasurement, p.Name())
	assert.Equal(t, at, p.Time())

	fields := map[string]any{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, uint64(200), fields["Sine"])
	assert.Equal(t, "abcd", fields["Blob"])

	require.Len(t, p.TagList(), 1)
	assert.Equal(t, "serial", p.TagList()[0].Key)
	assert.Equal(t, uint64(1), r.Written())
}

func TestObserveChannelsEvery(t *testing.T) {
	w := &fakeWriter{}
	r := New(w, Options{Measurement: "m", Every: 3})
	samples := testSamples(t)

	for i := 0; i < 7; i++ {
		r.ObserveChannels(time.Now(), samples)
	}
	assert.Len(t, w.points, 3)

	r.ObserveChannels(time.Now(), nil)
	assert.Len(t, w.points, 3)
}

func TestClose(t *testing.T) {
	w := &fakeWriter{}
	r := New(w, Options{})
	r.Close()
	r.Close()
	assert.Equal(t, 1, w.flushes)
}

func TestDialValidates(t *testing.T) {
	_, err := Dial(context.Background(), config.InfluxConfig{Bucket: "b"}, Options{})
	assert.Error(t, err)
	_, err = Dial(context.Background(), config.InfluxConfig{URL: "http://localhost:8086"}, Options{})
	assert.Error(t, err)
}
