package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/relabs-tech/adxl345_driver/internal/orientation"
)

func TestOrientationAPI(t *testing.T) {
	store := newPoseStore()

	rec := httptest.NewRecorder()
	store.handleOrientation(rec, httptest.NewRequest(http.MethodGet, "/api/orientation/adxl345-0", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("before data: status %d", rec.Code)
	}

	store.set(PoseMessage{Type: "pose", Device: "adxl345-1", Pose: orientation.Pose{Roll: 2}})
	store.set(PoseMessage{Type: "pose", Device: "adxl345-0", Pose: orientation.Pose{Roll: 1}})
	store.set(PoseMessage{Type: "pose", Device: "adxl345-0", Pose: orientation.Pose{Roll: 3}})

	rec = httptest.NewRecorder()
	store.handleOrientation(rec, httptest.NewRequest(http.MethodGet, "/api/orientation", nil))
	var all []PoseMessage
	if err := json.NewDecoder(rec.Body).Decode(&all); err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Device != "adxl345-0" || all[0].Pose.Roll != 3 || all[1].Device != "adxl345-1" {
		t.Errorf("all poses = %+v", all)
	}

	rec = httptest.NewRecorder()
	store.handleOrientation(rec, httptest.NewRequest(http.MethodGet, "/api/orientation/adxl345-1", nil))
	var one PoseMessage
	if err := json.NewDecoder(rec.Body).Decode(&one); err != nil {
		t.Fatal(err)
	}
	if one.Device != "adxl345-1" || one.Pose.Roll != 2 {
		t.Errorf("pose = %+v", one)
	}
}
