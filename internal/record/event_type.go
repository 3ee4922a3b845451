package record

import "strings"

// EventType tags what an event records
type EventType string

const (
	EventBirth       EventType = "Birth"
	EventBaptism     EventType = "Baptism"
	EventChristening EventType = "Christening"

	EventDeath        EventType = "Death"
	EventBurial       EventType = "Burial"
	EventCremation    EventType = "Cremation"
	EventCauseOfDeath EventType = "Cause Of Death"
	EventProbate      EventType = "Probate"

	EventMarriage      EventType = "Marriage"
	EventEngagement    EventType = "Engagement"
	EventMarriageBanns EventType = "Marriage Banns"
	EventDivorce       EventType = "Divorce"

	EventResidence  EventType = "Residence"
	EventOccupation EventType = "Occupation"
	EventCensus     EventType = "Census"
)

// Normalize returns the canonical spelling for known types, matched
// case-insensitively; unknown types are returned trimmed
func (t EventType) Normalize() EventType {
	s := strings.TrimSpace(string(t))
	for _, known := range knownTypes {
		if strings.EqualFold(s, string(known)) {
			return known
		}
	}
	return EventType(s)
}

var knownTypes = []EventType{
	EventBirth, EventBaptism, EventChristening,
	EventDeath, EventBurial, EventCremation, EventCauseOfDeath, EventProbate,
	EventMarriage, EventEngagement, EventMarriageBanns, EventDivorce,
	EventResidence, EventOccupation, EventCensus,
}

// IsBirth reports a primary birth event type
func (t EventType) IsBirth() bool {
	return t.Normalize() == EventBirth
}

// IsDeath reports a primary death event type
func (t EventType) IsDeath() bool {
	return t.Normalize() == EventDeath
}

// IsBirthFallback reports events that stand in for a missing birth
func (t EventType) IsBirthFallback() bool {
	switch t.Normalize() {
	case EventBaptism, EventChristening:
		return true
	}
	return false
}

// IsDeathFallback reports events that stand in for a missing death
func (t EventType) IsDeathFallback() bool {
	switch t.Normalize() {
	case EventBurial, EventCremation, EventCauseOfDeath, EventProbate:
		return true
	}
	return false
}

// IsFamily reports events that belong to a couple
func (t EventType) IsFamily() bool {
	switch t.Normalize() {
	case EventMarriage, EventEngagement, EventMarriageBanns, EventDivorce:
		return true
	}
	return false
}
