package main

// AchievementDef describes one unlockable
type AchievementDef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"desc"`
}

var Achievements = []AchievementDef{
	{"first_blood", "First Blood", "Destroy your first enemy"},
	{"chain_10", "Chain Reaction", "Reach a kill chain of 10"},
	{"wave_3", "Holding the Line", "Reach wave 3"},
	{"score_50", "Ace", "Score 50 in a single run"},
	{"survivor", "Survivor", "Survive for 5 minutes"},
}

func achieved(id string, run RunRow) bool {
	switch id {
	case "first_blood":
		return run.Kills >= 1
	case "chain_10":
		return run.BestChain >= 10
	case "wave_3":
		return run.Wave >= 3
	case "score_50":
		return run.Score >= 50
	case "survivor":
		return run.Duration >= 300
	}
	return false
}

// CheckAchievements unlocks whatever the finished run earned and returns the
// ones that are new for this pilot. Guests earn nothing.
func CheckAchievements(db *DB, run RunRow) []AchievementDef {
	if db == nil || run.PilotID == 0 {
		return nil
	}

	existing, err := db.GetAchievements(run.PilotID)
	if err != nil {
		return nil
	}
	has := make(map[string]bool, len(existing))
	for _, a := range existing {
		has[a] = true
	}

	var unlocked []AchievementDef
	for _, def := range Achievements {
		if has[def.ID] || !achieved(def.ID, run) {
			continue
		}
		if isNew, err := db.UnlockAchievement(run.PilotID, def.ID); err == nil && isNew {
			unlocked = append(unlocked, def)
		}
	}
	return unlocked
}
