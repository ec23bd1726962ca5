package speechmatics

// JobStatus represents the provider-reported state of a batch transcription job
type JobStatus string

const (
	JobStatusRunning  JobStatus = "running"
	JobStatusDone     JobStatus = "done"
	JobStatusError    JobStatus = "error"
	JobStatusRejected JobStatus = "rejected"
)

// Terminal reports whether the status is a terminal job state
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusError || s == JobStatusRejected
}

// jobConfig is the configuration document sent with a batch job submission
type jobConfig struct {
	Type                string              `json:"type"`
	TranscriptionConfig transcriptionConfig `json:"transcription_config"`
}

type transcriptionConfig struct {
	Language       string `json:"language"`
	OperatingPoint string `json:"operating_point"`
}

// jobDetails is the inner job object of a status response
type jobDetails struct {
	ID       string    `json:"id"`
	Status   JobStatus `json:"status"`
	Duration float64   `json:"duration"`
}

// jobResponse covers both response shapes the provider returns: some endpoints
// wrap the job in a "job" object, others return the fields at the top level.
type jobResponse struct {
	ID       string      `json:"id"`
	Status   JobStatus   `json:"status"`
	Duration float64     `json:"duration"`
	Job      *jobDetails `json:"job"`
}

// JobState is the observed state of a batch job: its status plus the audio
// duration in seconds once the provider has measured it (zero until then).
type JobState struct {
	Status          JobStatus
	DurationSeconds float64
}

// transcriptResponse is the finished-transcript document for a batch job
type transcriptResponse struct {
	Results []resultToken `json:"results"`
}

// resultToken is one typed token of a transcript result set
type resultToken struct {
	Type         string             `json:"type"` // "word", "punctuation", ...
	Alternatives []tokenAlternative `json:"alternatives"`
}

type tokenAlternative struct {
	Content string `json:"content"`
}

// EventKind identifies one of the closed set of realtime transcript events
type EventKind int

const (
	EventStarted EventKind = iota
	EventPartial
	EventFinal
	EventEndOfUtterance
	EventError
	EventClosed
)

// String returns a human-readable name for the event kind
func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventPartial:
		return "partial"
	case EventFinal:
		return "final"
	case EventEndOfUtterance:
		return "end_of_utterance"
	case EventError:
		return "error"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is a decoded realtime transcription event. The raw provider payload is
// decoded once at the transport boundary; consumers only ever see this type.
type Event struct {
	Kind   EventKind
	Text   string // transcript text for partial/final events
	Reason string // failure reason for error events
}

// realtimeMessage is the inbound wire shape of a realtime provider message,
// tagged by the "message" discriminator.
type realtimeMessage struct {
	Message  string           `json:"message"`
	Reason   string           `json:"reason"`
	Metadata *messageMetadata `json:"metadata"`
}

type messageMetadata struct {
	Transcript string `json:"transcript"`
}

// startRecognition is the session-configuration message sent after connecting
type startRecognition struct {
	Message             string                `json:"message"`
	AudioFormat         audioFormat           `json:"audio_format"`
	TranscriptionConfig rtTranscriptionConfig `json:"transcription_config"`
}

type audioFormat struct {
	Type       string `json:"type"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

type rtTranscriptionConfig struct {
	Language                  string              `json:"language"`
	OperatingPoint            string              `json:"operating_point"`
	EnablePartials            bool                `json:"enable_partials"`
	MaxDelay                  float64             `json:"max_delay,omitempty"`
	TranscriptFilteringConfig *filteringConfig    `json:"transcript_filtering_config,omitempty"`
	ConversationConfig        *conversationConfig `json:"conversation_config,omitempty"`
}

type filteringConfig struct {
	RemoveDisfluencies bool `json:"remove_disfluencies"`
}

type conversationConfig struct {
	EndOfUtteranceSilenceTrigger float64 `json:"end_of_utterance_silence_trigger"`
}

// endOfStream tells the provider no further audio will be sent
type endOfStream struct {
	Message   string `json:"message"`
	LastSeqNo int    `json:"last_seq_no"`
}
