package models

type GameType string

const (
	GameTypeArkaHack     GameType = "arka-hack"
	GameTypeSpaceBreaker GameType = "space-breaker"
	GameTypePacHack      GameType = "pac-hack"
	GameTypeMemoryBreach GameType = "memory-breach"
)

type GameConfig struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

var gameConfigs = map[GameType]GameConfig{
	GameTypeArkaHack: {
		Name:        "ARKA-HACK",
		Description: "The Wall - Arkanoid Firewall",
		Icon:        "█▓▒░HACK░▒▓█",
	},
	GameTypeSpaceBreaker: {
		Name:        "SPACE-BREAKER",
		Description: "The Fleet - Space Invaders Defense",
		Icon:        "[≡TACTIC≡]",
	},
	GameTypePacHack: {
		Name:        "PAC-HACK",
		Description: "The Maze - Pac-Man Protocol",
		Icon:        "[▲$RPPI▼]",
	},
	GameTypeMemoryBreach: {
		Name:        "MEMORY-BREACH",
		Description: "The Memory - Data Recovery",
		Icon:        "[≡BREACH≡]",
	},
}

// GameTypes lists the known minigames in display order.
func GameTypes() []GameType {
	return []GameType{
		GameTypeArkaHack,
		GameTypeSpaceBreaker,
		GameTypePacHack,
		GameTypeMemoryBreach,
	}
}

func GetGameConfig(gameType GameType) (GameConfig, bool) {
	cfg, ok := gameConfigs[gameType]
	return cfg, ok
}

func (g GameType) IsValid() bool {
	_, ok := gameConfigs[g]
	return ok
}
