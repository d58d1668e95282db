package app

import (
	"testing"
	"time"

	"hoshizora/internal/domain"
	"hoshizora/internal/moon"
)

func TestSplitPrefecture(t *testing.T) {
	cases := []struct{ in, pref, city string }{
		{"東京都新宿区西新宿", "東京都", "新宿区西新宿"},
		{"北海道札幌市中央区", "北海道", "札幌市中央区"},
		{"京都府京都市左京区", "京都府", "京都市左京区"},
		{"大阪府", "大阪府", ""},
		{"神奈川県横浜市", "神奈川県", "横浜市"},
		{"長野県　南佐久郡", "長野県", "南佐久郡"},
		{"Somewhere Else", "Somewhere Else", ""},
		{"   ", domain.UnknownPrefecture, ""},
	}
	for _, c := range cases {
		p, city := splitPrefecture(c.in)
		if p != c.pref || city != c.city {
			t.Fatalf("splitPrefecture(%q) = %q,%q; want %q,%q", c.in, p, city, c.pref, c.city)
		}
	}
}

func TestNormalizeText_FoldsFullWidth(t *testing.T) {
	if got := normalizeText(" ＡＢＣ１２３\u0007 "); got != "ABC123" {
		t.Fatalf("unexpected %q", got)
	}
}

func rakutenEntry(no any, name string) map[string]any {
	return map[string]any{
		"hotelBasicInfo": map[string]any{
			"hotelNo":           no,
			"hotelName":         name,
			"address1":          "長野県",
			"address2":          "南佐久郡南牧村野辺山",
			"nearestStation":    "野辺山",
			"hotelMinCharge":    8800.0,
			"reviewAverage":     4.25,
			"latitude":          35.95,
			"hotelImageUrl":     "",
			"hotelThumbnailUrl": "https://img.example/thumb.jpg",
		},
		"hotelRatingInfo": map[string]any{"locationAverage": 4.6},
		"hotelDetailInfo": map[string]any{"hotelRoomNum": 4.0},
	}
}

func TestMapHotel_DerivedFields(t *testing.T) {
	a, ok := mapHotel(rakutenEntry(100.0, "星見の宿"), "2025年8月23日")
	if !ok {
		t.Fatalf("entry dropped")
	}
	want := domain.Accommodation{
		ID:                  "100",
		Name:                "星見の宿",
		Location:            "南佐久郡南牧村野辺山 野辺山",
		Prefecture:          "長野県",
		NextNewMoon:         "2025年8月23日",
		ClearSkyProbability: 83,
		Price:               8800,
		Rating:              4.3,
		AvailableRooms:      4,
		ImageURL:            "https://img.example/thumb.jpg",
		LightPollution:      domain.LightLow,
		Altitude:            114,
	}
	if a != want {
		t.Fatalf("unexpected record:\n got %+v\nwant %+v", a, want)
	}
}

func TestMapHotel_Fallbacks(t *testing.T) {
	a, ok := mapHotel(map[string]any{"hotelNo": "7", "hotelName": "bare"}, "")
	if !ok {
		t.Fatalf("entry dropped")
	}
	if a.Prefecture != domain.UnknownPrefecture || a.Location != domain.UnknownPrefecture {
		t.Fatalf("unexpected address fields: %+v", a)
	}
	if a.Rating != 0 || a.ClearSkyProbability != 40 {
		t.Fatalf("unexpected rating fields: %+v", a)
	}
	if a.LightPollution != domain.LightMedium || a.Altitude != 0 {
		t.Fatalf("unexpected estimates: %+v", a)
	}
	if a.AvailableRooms != 1 || a.ImageURL != PlaceholderImage {
		t.Fatalf("unexpected defaults: %+v", a)
	}

	north, _ := mapHotel(map[string]any{"hotelNo": 8.0, "hotelName": "n", "latitude": 43.0, "hotelRoomNum": 0.0,
		"hotelRatingInfo": map[string]any{"totalAverage": 5.5}}, "")
	if north.LightPollution != domain.LightLow || north.Altitude != 960 {
		t.Fatalf("latitude estimate: %+v", north)
	}
	if north.Rating != 5.5 || north.ClearSkyProbability != 95 || north.AvailableRooms != 1 {
		t.Fatalf("total score fallback: %+v", north)
	}
}

func TestLightPollutionTiers(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	cases := []struct {
		score, lat *float64
		want       domain.LightPollution
	}{
		{f(4.5), nil, domain.LightLow},
		{f(3.5), f(45), domain.LightMedium},
		{f(3.4), nil, domain.LightHigh},
		{nil, f(30), domain.LightLow},
		{nil, f(35), domain.LightMedium},
		{nil, nil, domain.LightMedium},
	}
	for _, c := range cases {
		if got := lightPollution(c.score, c.lat); got != c.want {
			t.Fatalf("lightPollution: got %s want %s", got, c.want)
		}
	}
}

func TestNormalize_DropsEntriesWithoutIdentity(t *testing.T) {
	n := NewNormalizer(moon.NewFormatter("ja", nil))
	raw := []map[string]any{
		{"hotelBasicInfo": map[string]any{"hotelName": "no id"}},
		{"hotelBasicInfo": map[string]any{"hotelNo": 5.0}},
		{},
	}
	if got := n.Normalize(raw, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)); len(got) != 0 {
		t.Fatalf("expected empty list, got %+v", got)
	}
}

func TestNormalize_StampsNextNewMoon(t *testing.T) {
	n := NewNormalizer(moon.NewFormatter("en", nil))
	stay := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	got := n.Normalize([]map[string]any{rakutenEntry(1.0, "a")}, stay)
	if len(got) != 1 || got[0].NextNewMoon != moon.NewFormatter("en", nil).NextNewMoon(stay) {
		t.Fatalf("unexpected: %+v", got)
	}
}
