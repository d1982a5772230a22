package tools

import (
	"sort"
	"testing"
)

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(
		Tool{Name: "calculator"},
		Tool{Name: "calculator", Kind: KindResearch},
	)
	if err == nil {
		t.Fatal("duplicate name accepted")
	}
}

func TestNewRegistryRejectsEmptyName(t *testing.T) {
	if _, err := NewRegistry(Tool{Kind: KindGeneric}); err == nil {
		t.Fatal("empty name accepted")
	}
}

func TestKindOf(t *testing.T) {
	r, err := NewRegistry(
		Tool{Name: "browser", Kind: KindBrowser},
		Tool{Name: "web_search", Kind: KindResearch},
		Tool{Name: "calculator"},
	)
	if err != nil {
		t.Fatal(err)
	}
	for name, want := range map[string]Kind{
		"browser":    KindBrowser,
		"web_search": KindResearch,
		"calculator": KindGeneric, // defaulted at registration
		"unheard_of": KindGeneric, // unregistered names classify as generic
	} {
		if got := r.KindOf(name); got != want {
			t.Errorf("KindOf(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	r := Default()
	if err := r.Validate(nil); err != nil {
		t.Errorf("nil list: %v", err)
	}
	if err := r.Validate([]string{"calculator", "browser"}); err != nil {
		t.Errorf("known tools: %v", err)
	}
	if err := r.Validate([]string{"calculator", "warp_drive"}); err == nil {
		t.Error("unknown tool accepted")
	}
}

func TestListSorted(t *testing.T) {
	list := Default().List()
	if len(list) == 0 {
		t.Fatal("empty default registry")
	}
	if !sort.SliceIsSorted(list, func(i, j int) bool { return list[i].Name < list[j].Name }) {
		t.Errorf("list not sorted by name: %+v", list)
	}
	for _, tool := range list {
		if tool.Kind == "" {
			t.Errorf("tool %q has no kind", tool.Name)
		}
	}
}
