package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&TickRecord{},
	&AttackRecord{},
	&ImpactRecord{},
}

// Session is one simulation run
type Session struct {
	gorm.Model
	RunID       string       `json:"runId" gorm:"size:36;index"`
	Name        string       `json:"name" gorm:"size:200"`
	StartTime   time.Time    `json:"startTime" gorm:"type:timestamptz;index:idx_session_start"`
	EndTime     sql.NullTime `json:"endTime" gorm:"type:timestamptz"`
	DT          float32      `json:"dt"`
	MaxRangeSq  float32      `json:"maxRangeSq"`
	ProbeCap    int          `json:"probeCap"`
	MinionCount int          `json:"minionCount"`
	Seed        int64        `json:"seed"` // bit pattern of the uint64 seed

	Ticks []TickRecord `json:"-"`
}

func (*Session) TableName() string {
	return "sessions"
}

// TickRecord is the summary of one simulation tick
type TickRecord struct {
	ID             uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID      uint      `json:"sessionId" gorm:"index:idx_tick_session_id"`
	Session        Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Tick           uint64    `json:"tick" gorm:"index:idx_tick_tick"`
	Time           time.Time `json:"time" gorm:"type:timestamptz;"`
	DurationMicros int64     `json:"durationMicros"`
	Skipped        bool      `json:"skipped" gorm:"default:false"`
	Projectiles    int       `json:"projectiles"`
	Minions        int       `json:"minions"`
	Attacks        int       `json:"attacks"`
	Spawned        int       `json:"spawned"`
	MinionsKilled  int       `json:"minionsKilled"`
	// Reasons maps lifecycle reason names to request counts
	Reasons datatypes.JSON `json:"reasons"`
}

func (*TickRecord) TableName() string {
	return "tick_records"
}

// AttackRecord is one attack command emitted by an arrow
type AttackRecord struct {
	ID        uint    `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID uint    `json:"sessionId" gorm:"index:idx_attack_session_id"`
	Session   Session `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Tick      uint64  `json:"tick" gorm:"index:idx_attack_tick"`
	Attacker  uint64  `json:"attacker"`
	Target    uint64  `json:"target" gorm:"index:idx_attack_target"`
	Damage    float32 `json:"damage"`
}

func (*AttackRecord) TableName() string {
	return "attack_records"
}

// ImpactRecord is one lifecycle request. Position holds the XZ ground-plane
// coordinates; Height is the Y component.
type ImpactRecord struct {
	ID         uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID  uint       `json:"sessionId" gorm:"index:idx_impact_session_id"`
	Session    Session    `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Tick       uint64     `json:"tick" gorm:"index:idx_impact_tick"`
	Projectile uint64     `json:"projectile"`
	Reason     string     `json:"reason" gorm:"size:32;index:idx_impact_reason"`
	Position   geom.Point `json:"position"`
	Height     float32    `json:"height"`
}

func (*ImpactRecord) TableName() string {
	return "impact_records"
}
