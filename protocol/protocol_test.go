package protocol

import (
	"encoding/json"
	"testing"
)

func TestDestFormat(t *testing.T) {
	p := Position{Row: 3, Col: 7}
	if got := p.Dest(); got != "3,7" {
		t.Fatalf("want \"3,7\", got %q", got)
	}

	back, err := ParseDest("3,7")
	if err != nil || back != p {
		t.Fatalf("ParseDest: %v %v", back, err)
	}

	if _, err := ParseDest("not-a-dest"); err == nil {
		t.Fatal("want error for malformed dest")
	}
}

// The server keys on these exact names; a drive-by rename breaks every
// client in the wild.
func TestUpdateSceneWireShape(t *testing.T) {
	raw := `{"roomId":"r1","users":[{"Position":{"Row":2,"Col":5},"Direction":1,"UserID":"u1","UserName":"Alice","IsTyping":false}]}`

	var sc UpdateScene
	if err := json.Unmarshal([]byte(raw), &sc); err != nil {
		t.Fatal(err)
	}
	if sc.RoomID != "r1" || len(sc.Users) != 1 {
		t.Fatalf("bad decode: %+v", sc)
	}
	u := sc.Users[0]
	if u.UserID != "u1" || u.UserName != "Alice" || u.Position != (Position{Row: 2, Col: 5}) || u.Direction != Right {
		t.Fatalf("user fields lost: %+v", u)
	}
}

func TestOutboundFieldCasing(t *testing.T) {
	b, err := json.Marshal(UpdatePosition{Dest: "3,3", RoomID: "r1", UserID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"dest":"3,3","roomId":"r1","userId":"u1"}`
	if string(b) != want {
		t.Fatalf("want %s, got %s", want, b)
	}
}
