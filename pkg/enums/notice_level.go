package enums

// NoticeLevel grades the user-facing notices attached to API responses.
type NoticeLevel string

const (
	NoticeLevelInfo    NoticeLevel = "info"
	NoticeLevelSuccess NoticeLevel = "success"
	NoticeLevelWarning NoticeLevel = "warning"
	NoticeLevelError   NoticeLevel = "error"
)

func (n NoticeLevel) String() string {
	return string(n)
}
