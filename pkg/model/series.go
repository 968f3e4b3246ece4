package model

type SeriesID string

// Standing is one row of a points table.
type Standing struct {
	Team       string  `json:"team" firestore:"team"`
	Played     int     `json:"played" firestore:"played"`
	Won        int     `json:"won" firestore:"won"`
	Lost       int     `json:"lost" firestore:"lost"`
	NoResult   int     `json:"no_result,omitempty" firestore:"no_result"`
	Points     int     `json:"points" firestore:"points"`
	NetRunRate float64 `json:"net_run_rate,omitempty" firestore:"net_run_rate"`
}

// Series is a tournament or bilateral series in a given season.
type Series struct {
	ID           SeriesID   `json:"id" firestore:"id"`
	Name         string     `json:"name" firestore:"name"`
	Year         int        `json:"year" firestore:"year"`
	Participants []string   `json:"participants,omitempty" firestore:"participants"`
	Standings    []Standing `json:"standings,omitempty" firestore:"standings"`
}
