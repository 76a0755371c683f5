package domain

import "time"

// TimelineEvent описывает событие в жизненном цикле брони, стола или счёта.
// Таймлайн — best-effort аудит для персонала; источником истины остаются
// строки агрегатов.
type TimelineEvent struct {
	AggregateID string
	Type        string
	Detail      string
	Occurred    time.Time
}

// TimelineRepository хранит события жизненного цикла агрегатов.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(aggregateID string) ([]TimelineEvent, error)
}
