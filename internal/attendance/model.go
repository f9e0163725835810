package attendance

import "time"

// StatusPresent is the only status written by Submit.
const StatusPresent = "Present"

// Student is read-only for the attendance flow.
type Student struct {
	RollNumber string `json:"rollNumber"`
	Name       string `json:"name"`
	Year       int    `json:"year"`
	Branch     string `json:"branch"`
}

// ScheduledClass is one class session. StartTime and EndTime are "HH:MM" clock
// times on Date in the reference zone.
type ScheduledClass struct {
	ID          string    `json:"id"`
	ClassName   string    `json:"className"`
	Subject     string    `json:"subject"`
	TeacherName string    `json:"teacherName"`
	Date        time.Time `json:"date"`
	Day         string    `json:"day"`
	StartTime   string    `json:"startTime"`
	EndTime     string    `json:"endTime"`
	ClassCode   string    `json:"classCode"`
	Year        int       `json:"year"`
	Branch      string    `json:"branch"`
}

// ClassLocation is the geofence and beacon configured for a class name.
type ClassLocation struct {
	ClassName    string  `json:"className"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radiusMeters"`
	BeaconID     string  `json:"beaconId"`
}

// Record is a stored attendance mark. Day is the calendar day the mark counts for.
type Record struct {
	ID         string
	RollNumber string
	ClassName  string
	Subject    string
	ClassCode  string
	Status     string
	MarkedAt   time.Time
	Day        time.Time
}

// Submission is a student's attempt to mark attendance.
type Submission struct {
	RollNumber string
	ClassName  string
	ClassCode  string
	Latitude   float64
	Longitude  float64
	BeaconID   string
}

// Receipt is returned after a successful submission.
type Receipt struct {
	ID        string    `json:"id"`
	ClassName string    `json:"className"`
	Subject   string    `json:"subject"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	MarkedAt  time.Time `json:"timestamp"`
}

// Notification is the display state of one of today's classes.
type Notification struct {
	ClassName         string `json:"className"`
	Subject           string `json:"subject"`
	TeacherName       string `json:"teacherName"`
	Date              string `json:"date"`
	StartTime         string `json:"startTime"`
	EndTime           string `json:"endTime"`
	Day               string `json:"day"`
	Status            Status `json:"status"`
	MinutesUntilStart int    `json:"minutesUntilStart"`
	MinutesRemaining  int    `json:"minutesRemaining"`
	AttendanceID      string `json:"attendanceId,omitempty"`
}

// Notifications is the result of a notification query.
type Notifications struct {
	Items      []Notification `json:"notifications"`
	ServerTime time.Time      `json:"serverTime"`
}

// HistoryEntry is a display-ready attendance record.
type HistoryEntry struct {
	ClassName string    `json:"className"`
	Subject   string    `json:"subject"`
	Status    string    `json:"status"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	MarkedAt  time.Time `json:"timestamp"`
}

const (
	dateLayout        = "2006-01-02"
	historyDateLayout = "02/01/2006"
	historyTimeLayout = "03:04 PM"
)
