package models

// GlobalState is a singleton row holding process state that must survive
// restarts.
type GlobalState struct {
	ID           int `gorm:"primaryKey;autoIncrement:false"`
	LastUpdateID int
}

const GlobalStateID = 1
