package models

// Intent is the single query intent a message expresses.
type Intent string

// Supported intents. Greeting is only produced on the general conversational path.
const (
	IntentGrades             Intent = "grades"
	IntentAverage            Intent = "average"
	IntentSubjects           Intent = "subjects"
	IntentClassroomOrSection Intent = "classroom_or_section"
	IntentBestGrade          Intent = "best_grade"
	IntentWorstGrade         Intent = "worst_grade"
	IntentRoadmap            Intent = "roadmap_or_improvement"
	IntentGreeting           Intent = "greeting"
	IntentOther              Intent = "other"
)

// Academic reports whether the intent is served from enrollment data.
func (i Intent) Academic() bool {
	switch i {
	case IntentGrades, IntentAverage, IntentSubjects, IntentClassroomOrSection,
		IntentBestGrade, IntentWorstGrade, IntentRoadmap:
		return true
	}
	return false
}

// ParseIntent maps a raw label to a known intent, defaulting to other.
func ParseIntent(raw string) Intent {
	switch i := Intent(raw); i {
	case IntentGrades, IntentAverage, IntentSubjects, IntentClassroomOrSection,
		IntentBestGrade, IntentWorstGrade, IntentRoadmap, IntentGreeting:
		return i
	}
	return IntentOther
}

// MatchType tags what the entity matcher found.
type MatchType string

const (
	MatchSubject   MatchType = "subject"
	MatchClassroom MatchType = "classroom"
	MatchSection   MatchType = "section"
	MatchNone      MatchType = "none"
)

// QueryKind is the attribute requested for a matched subject.
type QueryKind string

const (
	QueryGrade     QueryKind = "grade"
	QueryClassroom QueryKind = "classroom"
	QuerySection   QueryKind = "section"
	QueryGeneral   QueryKind = "general"
)

// MatchResult is the entity matcher output. Candidate holds text extracted by a pattern
// that did not resolve to any enrollment.
type MatchResult struct {
	Type        MatchType `json:"type"`
	SubjectName string    `json:"subject_name,omitempty"`
	Query       QueryKind `json:"query_kind,omitempty"`
	Candidate   string    `json:"candidate,omitempty"`
}

// Found reports whether a subject was resolved.
func (m MatchResult) Found() bool {
	return m.Type != MatchNone && m.SubjectName != ""
}

// PendingAction values.
const (
	PendingNone         = ""
	PendingRoadmapOffer = "roadmap_offer"
)

// ConversationContext is the lightweight per-session state carried across turns.
type ConversationContext struct {
	LastMentionedSubject string `json:"last_mentioned_subject,omitempty"`
	LastQueryType        Intent `json:"last_query_type,omitempty"`
	PendingAction        string `json:"pending_action,omitempty"`
}

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one entry of the conversational history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AttachmentKind distinguishes supported media.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentAudio AttachmentKind = "audio"
)

// Attachment is optional media sent with a turn. ClientTranscript and ClientSpeechError
// carry the result of the browser's own speech recognition, when it ran.
type Attachment struct {
	Kind              AttachmentKind
	MIMEType          string
	Data              []byte
	ClientTranscript  string
	ClientSpeechError string
}

// ChatTurn is one user submission.
type ChatTurn struct {
	Message    string
	Attachment *Attachment
}

// ReplyPath records which branch produced a reply.
type ReplyPath string

const (
	PathAcademic           ReplyPath = "academic"
	PathAuthRequired       ReplyPath = "auth_required"
	PathConversational     ReplyPath = "conversational"
	PathFallback           ReplyPath = "fallback"
	PathVision             ReplyPath = "vision"
	PathTranscriptionError ReplyPath = "transcription_error"
)

// ChatReply is always produced, whatever failed along the way.
type ChatReply struct {
	Text       string    `json:"text"`
	Intent     Intent    `json:"intent"`
	Path       ReplyPath `json:"path"`
	Transcript string    `json:"transcript,omitempty"`
}

// ServiceStatus mirrors the assistant availability report.
type ServiceStatus struct {
	Available bool   `json:"available"`
	Mode      string `json:"mode"`
	Provider  string `json:"provider"`
	HasAPIKey bool   `json:"has_api_key"`
	Details   string `json:"details"`
}
