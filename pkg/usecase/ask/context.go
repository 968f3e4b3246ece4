package ask

import (
	"github.com/m-mizutani/wicket/pkg/model"
	"github.com/m-mizutani/wicket/pkg/resolver"
)

// ApplyContext resolves the extracted entities against the session memory
// and returns them with the updated memory. A series different from the
// remembered one starts a new topic and forgets team, opponent and player.
func ApplyContext(memory model.SessionMemory, ext *model.Extraction) (model.Entities, model.SessionMemory) {
	entities := ext.Entities

	newTopic := entities.Series != "" && memory.LastSeries != "" &&
		!resolver.Matches(entities.Series, memory.LastSeries)
	if newTopic {
		memory.LastTeam = ""
		memory.LastOpponent = ""
		memory.LastPlayer = ""
	}

	if entities.Team == "" && entities.Opponent == "" && entities.Player == "" {
		entities.Team = memory.LastTeam
		entities.Opponent = memory.LastOpponent
		entities.Player = memory.LastPlayer
	}
	if entities.Series == "" {
		entities.Series = memory.LastSeries
	}
	if len(entities.Years) == 0 && entities.TargetDate == "" && memory.LastYear != 0 &&
		(ext.TimeContext == model.TimePast || ext.TimeContext == model.TimeUnspecified || ext.TimeContext == "") {
		entities.Years = []int{memory.LastYear}
	}

	if entities.Team != "" {
		memory.LastTeam = entities.Team
	}
	if entities.Opponent != "" {
		memory.LastOpponent = entities.Opponent
	}
	if entities.Player != "" {
		memory.LastPlayer = entities.Player
	}
	if entities.Series != "" {
		memory.LastSeries = entities.Series
	}
	if len(entities.Years) > 0 {
		memory.LastYear = entities.Years[0]
	}

	return entities, memory
}
