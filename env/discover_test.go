package env

import "testing"

func fakeStat(existing map[string]bool) func(string) bool {
	return func(path string) bool { return existing[path] }
}

func TestDiscoverModulePaths(t *testing.T) {
	existing := map[string]bool{
		"/rom/title.rtld.elf":    true,
		"/rom/title.main.elf":    true,
		"/rom/title.subsdk0.elf": true,
	}
	paths, err := DiscoverModulePaths("/rom/title.sdk.elf", fakeStat(existing))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if paths.Rtld != "/rom/title.rtld.elf" {
		t.Errorf("rtld path = %q", paths.Rtld)
	}
	if paths.Main != "/rom/title.main.elf" {
		t.Errorf("main path = %q", paths.Main)
	}
	if paths.Subsdk0 != "/rom/title.subsdk0.elf" {
		t.Errorf("subsdk0 path = %q", paths.Subsdk0)
	}
	if paths.Sdk != "/rom/title.sdk.elf" {
		t.Errorf("sdk path = %q", paths.Sdk)
	}
}

func TestDiscoverModulePathsMissingSibling(t *testing.T) {
	existing := map[string]bool{
		"/rom/title.rtld.elf": true,
	}
	_, err := DiscoverModulePaths("/rom/title.sdk.elf", fakeStat(existing))
	var missing *MissingModuleError
	if err == nil {
		t.Fatal("expected an error")
	}
	if !asMissingModuleError(err, &missing) {
		t.Fatalf("expected MissingModuleError, got %T: %v", err, err)
	}
	if missing.Kind != Main {
		t.Errorf("expected Main to be reported missing first, got %s", missing.Kind)
	}
}

func TestDiscoverModulePathsNoSdkSubstring(t *testing.T) {
	_, err := DiscoverModulePaths("/rom/title.elf", fakeStat(nil))
	if err == nil {
		t.Fatal("expected an error for a filename without \"sdk\"")
	}
}

func asMissingModuleError(err error, target **MissingModuleError) bool {
	e, ok := err.(*MissingModuleError)
	if !ok {
		return false
	}
	*target = e
	return true
}
