package timeline

import (
	"testing"
)

func TestDocumentRoundTrip(t *testing.T) {
	s := NewEditorState()
	s.Assets = []Asset{
		{ID: "a1", Kind: AssetKindVideo, Name: "intro.mp4", ContentPath: "assets/p1/a1", Duration: floatPtr(30)},
		{ID: "a2", Kind: AssetKindAudio, Name: "music.mp3", ContentPath: "assets/p1/a2", Duration: floatPtr(120)},
	}
	s.Clips = []Clip{
		{ID: "c1", AssetID: "a1", TrackIndex: 0, StartTime: 0, Duration: 5, Volume: 1, Speed: 1},
		{ID: "c2", AssetID: "a2", TrackIndex: 1, StartTime: 2, Duration: 6, Volume: 0.7, Speed: 1},
	}
	s.Tracks[1] = TrackSettings{Volume: 0.5, Speed: 1, Visible: true}
	s.ZoomLevel = 80
	s.MasterVolume = 0.9
	s.RecomputeDuration()

	data, err := MarshalDocument(s.ToDocument())
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	doc, err := UnmarshalDocument(data)
	if err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	restored, warnings, err := FromDocument(doc)
	if err != nil {
		t.Fatalf("Failed to restore: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("Expected no orphan warnings, got %v", warnings)
	}

	if len(restored.Clips) != 2 || len(restored.Assets) != 2 {
		t.Fatalf("Restored state lost entities: %d clips, %d assets", len(restored.Clips), len(restored.Assets))
	}
	if restored.Duration != s.Duration {
		t.Errorf("Expected derived duration %v, got %v", s.Duration, restored.Duration)
	}
	if restored.Tracks[1].Volume != 0.5 {
		t.Errorf("Track settings not restored: %+v", restored.Tracks[1])
	}
	if restored.ZoomLevel != 80 || restored.MasterVolume != 0.9 {
		t.Errorf("View settings not restored: zoom=%v master=%v", restored.ZoomLevel, restored.MasterVolume)
	}
}

func TestMutedMasterVolumeRoundTrip(t *testing.T) {
	s := NewEditorState()
	s.MasterVolume = 0

	data, err := MarshalDocument(s.ToDocument())
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	doc, err := UnmarshalDocument(data)
	if err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	restored, _, err := FromDocument(doc)
	if err != nil {
		t.Fatalf("Failed to restore: %v", err)
	}

	if restored.MasterVolume != 0 {
		t.Errorf("Muted master volume must survive a round trip, got %v", restored.MasterVolume)
	}
}

func TestAbsentMasterVolumeDefaultsToFullGain(t *testing.T) {
	doc, err := UnmarshalDocument([]byte(`{"version":1}`))
	if err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	restored, _, err := FromDocument(doc)
	if err != nil {
		t.Fatalf("Failed to restore: %v", err)
	}

	if restored.MasterVolume != 1 {
		t.Errorf("Documents without a master volume default to 1, got %v", restored.MasterVolume)
	}
}

func TestFromDocumentSurfacesOrphans(t *testing.T) {
	doc := &Document{
		Version: DocumentVersion,
		Assets:  []Asset{{ID: "kept", Kind: AssetKindVideo}},
		Clips: []Clip{
			{ID: "c1", AssetID: "kept", Duration: 3},
			{ID: "c2", AssetID: "missing", Duration: 4},
		},
	}

	s, warnings, err := FromDocument(doc)
	if err != nil {
		t.Fatalf("Orphan clips must not fail the load: %v", err)
	}
	if len(s.Clips) != 2 {
		t.Errorf("Orphan clips must be retained, got %d clips", len(s.Clips))
	}
	if len(warnings) != 1 || warnings[0] != "c2" {
		t.Errorf("Expected warning for c2, got %v", warnings)
	}
}

func TestFromDocumentRejectsInvalidClip(t *testing.T) {
	doc := &Document{
		Version: DocumentVersion,
		Clips:   []Clip{{ID: "bad", AssetID: "x", Duration: -1}},
	}

	if _, _, err := FromDocument(doc); err == nil {
		t.Error("Expected error for invariant-violating clip")
	}
}

func TestFromDocumentRejectsNewerVersion(t *testing.T) {
	doc := &Document{Version: DocumentVersion + 1}

	if _, _, err := FromDocument(doc); err == nil {
		t.Error("Expected error for unsupported version")
	}
}
