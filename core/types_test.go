package core

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestAddSafe(t *testing.T) {
	if v, err := AddSafe(10, 5); err != nil || v != 15 {
		t.Fatalf("got %v %v", v, err)
	}
	if _, err := AddSafe(math.MaxInt64, 1); err == nil {
		t.Fatalf("expected overflow")
	}
}

func TestNormalizeUserID(t *testing.T) {
	id, err := NormalizeUserID(" Alice ")
	if err != nil || id != "alice" {
		t.Fatalf("got %v %v", id, err)
	}
	if _, err := NormalizeUserID("   "); err == nil {
		t.Fatalf("expected empty error")
	}
}

func TestLevelFor(t *testing.T) {
	cases := map[int64]int64{0: 1, 1: 1, 99: 1, 100: 2, 102: 2, 250: 3, 1000: 11}
	for xp, want := range cases {
		if got := LevelFor(xp); got != want {
			t.Fatalf("LevelFor(%d) = %d, want %d", xp, got, want)
		}
	}
	if XPToNextLevel(0) != 100 || XPToNextLevel(102) != 98 || XPToNextLevel(200) != 100 {
		t.Fatal("unexpected xp to next level")
	}
}

func TestValidateBadgeID(t *testing.T) {
	if err := ValidateBadgeID("quiz_champ"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := ValidateBadgeID("bad badge"); err == nil {
		t.Fatalf("expected invalid badge err")
	}
}

func TestStateNormalizeAndClone(t *testing.T) {
	st := State{TotalXP: 250, Level: 7, Badges: []Badge{{Code: "day1"}}}.Normalize()
	if st.Level != 3 || st.XPToNextLevel != 50 {
		t.Fatalf("derived fields not recomputed: %+v", st)
	}
	cp := st.Clone()
	cp.Badges[0].Code = "changed"
	if st.Badges[0].Code != "day1" {
		t.Fatal("clone shares badge storage")
	}
}

func TestDate(t *testing.T) {
	d := NewDate(2024, time.February, 28)
	if got := d.Add(2).String(); got != "2024-03-01" {
		t.Fatalf("got %s", got)
	}
	if d.Add(2).DaysSince(d) != 2 {
		t.Fatal("days since")
	}
	loc := time.FixedZone("UTC+10", 10*3600)
	if got := DateOf(time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC).In(loc)).String(); got != "2024-03-02" {
		t.Fatalf("date should follow location, got %s", got)
	}

	b, err := json.Marshal(struct {
		D Date `json:"d"`
		Z Date `json:"z"`
	}{D: d})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"d":"2024-02-28","z":null}` {
		t.Fatalf("unexpected json %s", b)
	}
	var back struct {
		D Date `json:"d"`
		Z Date `json:"z"`
	}
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back.D != d || !back.Z.IsZero() {
		t.Fatalf("unexpected decode %+v", back)
	}
}
