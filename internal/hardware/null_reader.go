package hardware

// nullReader is the default Reader: it reports no accelerator present,
// keeping default builds of the gateway free of any GPU/CGO dependency.
type nullReader struct{}

// NewNullReader returns a Reader whose Init always fails, matching the
// original monitor's non-CUDA build behavior ("Monitor: CUDA support not
// compiled. Running in CPU-only mode.").
func NewNullReader() Reader { return nullReader{} }

func (nullReader) Init() bool     { return false }
func (nullReader) Read() RawStats { return RawStats{} }
func (nullReader) Shutdown()      {}
