package types

import "testing"

func TestHarmCategories_Order(t *testing.T) {
	got := HarmCategories()
	want := []HarmCategory{
		HarmCategoryHarassment,
		HarmCategoryHateSpeech,
		HarmCategorySexuallyExplicit,
		HarmCategoryDangerousContent,
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("HarmCategories()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
