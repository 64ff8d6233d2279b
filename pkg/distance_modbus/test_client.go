package distance_modbus

import "sync/atomic"

func CreateTestDistanceReader(distanceCm float64) *TestDistanceReader {
	return &TestDistanceReader{DistanceCm: distanceCm}
}

type TestDistanceReader struct {
	DistanceCm float64
	Err        error
	Reads      atomic.Int32
}

func (reader *TestDistanceReader) Open() error {
	return nil
}

func (reader *TestDistanceReader) Close() error {
	return nil
}

func (reader *TestDistanceReader) ReadDistanceCm() (float64, error) {
	reader.Reads.Add(1)
	if reader.Err != nil {
		return 0, reader.Err
	}
	return reader.DistanceCm, nil
}
