package user

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"testing"
)

const testPassword = "letmein"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "data", "users.json"), testPassword)
	t.Cleanup(func() { s.Close() })
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

func registerUser(t *testing.T, s *Store, userID, badge string) {
	t.Helper()
	if err := s.Authenticate(userID, testPassword); err != nil {
		t.Fatalf("Authenticate %s: %v", userID, err)
	}
	if err := s.Register(userID, badge, "User "+userID); err != nil {
		t.Fatalf("Register %s: %v", userID, err)
	}
}

func TestStore_LoadMissingFile(t *testing.T) {
	s := newTestStore(t)
	if ids := s.UserIDs(); len(ids) != 0 {
		t.Errorf("users = %v, want none", ids)
	}
}

func TestStore_LoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	s := NewStore(path, testPassword)
	defer s.Close()
	if err := s.Load(); err != nil {
		t.Fatalf("Load of empty file: %v", err)
	}
}

func TestStore_LoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	if err := os.WriteFile(path, []byte(`{"1": [`), 0644); err != nil {
		t.Fatal(err)
	}
	s := NewStore(path, testPassword)
	defer s.Close()
	if err := s.Load(); !errors.Is(err, ErrMalformedDocument) {
		t.Errorf("expected ErrMalformedDocument, got: %v", err)
	}
}

func TestStore_Authenticate(t *testing.T) {
	s := newTestStore(t)

	if err := s.Authenticate("42", "wrong"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("expected ErrWrongPassword, got: %v", err)
	}
	if _, ok := s.Record("42"); ok {
		t.Error("wrong password must not create a record")
	}

	if err := s.Authenticate("42", testPassword); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !s.IsAuthenticated("42") {
		t.Error("user should be authenticated")
	}
	if s.IsRegistered("42") {
		t.Error("user without badge should not be registered")
	}
}

func TestStore_AuthenticateEmptySecret(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "users.json"), "")
	defer s.Close()
	if err := s.Authenticate("42", ""); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("empty secret must reject, got: %v", err)
	}
}

func TestStore_Register(t *testing.T) {
	s := newTestStore(t)

	if err := s.Register("42", "5059", "Alice"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound before auth, got: %v", err)
	}

	if err := s.Authenticate("42", testPassword); err != nil {
		t.Fatal(err)
	}
	if err := s.Register("42", "50a9", "Alice"); !errors.Is(err, ErrInvalidBadgeID) {
		t.Errorf("expected ErrInvalidBadgeID, got: %v", err)
	}
	if err := s.Register("42", " 5059 ", "Alice"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	rec, ok := s.Record("42")
	if !ok {
		t.Fatal("record missing")
	}
	if rec.BadgeID != "5059" || rec.DisplayName != "Alice" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Settings == nil {
		t.Fatal("registration should create default settings")
	}
	if !s.IsRegistered("42") {
		t.Error("user should be registered")
	}
}

func TestStore_RegisterKeepsSettings(t *testing.T) {
	s := newTestStore(t)
	registerUser(t, s, "42", "5059")

	if _, err := s.ToggleSetting("42", SettingAlertAboutUsers); err != nil {
		t.Fatal(err)
	}
	if err := s.Register("42", "5060", "Alice"); err != nil {
		t.Fatal(err)
	}
	st, _ := s.Settings("42")
	if got := st.Get(SettingAlertAboutUsers); got != ValueWhenInOffice {
		t.Errorf("re-registration reset settings: %q", got)
	}
}

func TestStore_SettingsMaterializesDefaults(t *testing.T) {
	s := newTestStore(t)
	if err := s.Authenticate("7", testPassword); err != nil {
		t.Fatal(err)
	}
	rec, _ := s.Record("7")
	if rec.Settings != nil {
		t.Fatal("settings should not exist before first access")
	}
	st, err := s.Settings("7")
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if !reflect.DeepEqual(st, DefaultSettings()) {
		t.Errorf("settings = %+v, want defaults", st)
	}

	if _, err := s.Settings("nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got: %v", err)
	}
}

func TestStore_ToggleSettingCycles(t *testing.T) {
	s := newTestStore(t)
	registerUser(t, s, "42", "5059")

	def, _ := LookupDefinition(SettingAlertAboutUsers)
	for i := 1; i <= len(def.Values); i++ {
		st, err := s.ToggleSetting("42", SettingAlertAboutUsers)
		if err != nil {
			t.Fatalf("ToggleSetting: %v", err)
		}
		want := def.Values[i%len(def.Values)]
		if got := st.Get(SettingAlertAboutUsers); got != want {
			t.Errorf("toggle %d = %q, want %q", i, got, want)
		}
	}

	if _, err := s.ToggleSetting("42", "nope"); !errors.Is(err, ErrUnknownSetting) {
		t.Errorf("expected ErrUnknownSetting, got: %v", err)
	}
	if _, err := s.ToggleSetting("nobody", SettingAlertAboutUsers); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got: %v", err)
	}
}

func TestStore_ToggleSettingPersists(t *testing.T) {
	s := newTestStore(t)
	registerUser(t, s, "42", "5059")
	if _, err := s.ToggleSetting("42", SettingMorningBirthdays); err != nil {
		t.Fatal(err)
	}

	reloaded := NewStore(s.Path(), testPassword)
	defer reloaded.Close()
	if err := reloaded.Load(); err != nil {
		t.Fatal(err)
	}
	st, _ := reloaded.Settings("42")
	if got := st.Get(SettingMorningBirthdays); got != ValueOff {
		t.Errorf("persisted morning_birthdays = %q, want off", got)
	}
}

func TestStore_ResetSettings(t *testing.T) {
	s := newTestStore(t)
	registerUser(t, s, "42", "5059")
	s.ToggleSetting("42", SettingMorningBirthdays)
	s.ToggleSetting("42", SettingAlertAboutUsers)

	st, err := s.ResetSettings("42")
	if err != nil {
		t.Fatalf("ResetSettings: %v", err)
	}
	if !reflect.DeepEqual(st, DefaultSettings()) {
		t.Errorf("settings = %+v, want defaults", st)
	}
}

func TestStore_WatchListIdempotent(t *testing.T) {
	s := newTestStore(t)
	registerUser(t, s, "42", "5059")

	added, err := s.AddWatch("42", "Ivanov Ivan")
	if err != nil || !added {
		t.Fatalf("first AddWatch = %v, %v", added, err)
	}
	added, err = s.AddWatch("42", "  Ivanov   Ivan ")
	if err != nil || added {
		t.Errorf("second AddWatch = %v, %v; want no change", added, err)
	}
	s.AddWatch("42", "Petrov Petr")

	want := []string{"Ivanov Ivan", "Petrov Petr"}
	if got := s.Watched("42"); !reflect.DeepEqual(got, want) {
		t.Errorf("watched = %v, want %v", got, want)
	}

	removed, err := s.RemoveWatch("42", "Sidorov")
	if err != nil || removed {
		t.Errorf("RemoveWatch absent = %v, %v; want no-op", removed, err)
	}
	removed, err = s.RemoveWatch("42", "Ivanov Ivan")
	if err != nil || !removed {
		t.Errorf("RemoveWatch = %v, %v", removed, err)
	}
	if got := s.Watched("42"); !reflect.DeepEqual(got, []string{"Petrov Petr"}) {
		t.Errorf("watched = %v", got)
	}

	if _, err := s.AddWatch("42", "   "); !errors.Is(err, ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got: %v", err)
	}
}

func TestStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	registerUser(t, s, "1", "5059")
	registerUser(t, s, "2", "5060")
	s.AddWatch("1", "Ivanov Ivan")
	s.AddWatch("1", "Petrov Petr")
	s.ToggleSetting("2", SettingAlertAboutUsers)
	s.Authenticate("3", testPassword)

	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded := NewStore(s.Path(), testPassword)
	defer reloaded.Close()
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, id := range s.UserIDs() {
		want, _ := s.Record(id)
		got, ok := reloaded.Record(id)
		if !ok {
			t.Fatalf("user %s missing after reload", id)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("user %s = %+v, want %+v", id, got, want)
		}
	}
	if !reflect.DeepEqual(reloaded.UserIDs(), s.UserIDs()) {
		t.Errorf("ids = %v, want %v", reloaded.UserIDs(), s.UserIDs())
	}
}

func TestStore_LoadLegacyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	legacy := `{
 "100": {
  "authenticated": "True",
  "who": "Alice A",
  "name": "5059",
  "alert_users": ["Ivanov Ivan"],
  "settings": {"morning_birthdays": "off", "alert_about_users": "when_in_office", "__type__": "UserSettings"}
 },
 "200": {"authenticated": "False"}
}`
	if err := os.WriteFile(path, []byte(legacy), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(path, testPassword)
	defer s.Close()
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	rec, ok := s.Record("100")
	if !ok {
		t.Fatal("user 100 missing")
	}
	if !rec.Authenticated || rec.BadgeID != "5059" || rec.DisplayName != "Alice A" {
		t.Errorf("record = %+v", rec)
	}
	if !reflect.DeepEqual(rec.WatchedNames, []string{"Ivanov Ivan"}) {
		t.Errorf("watched = %v", rec.WatchedNames)
	}
	if rec.Settings.Get(SettingAlertAboutUsers) != ValueWhenInOffice {
		t.Errorf("settings = %v", rec.Settings.Values)
	}
	if s.IsAuthenticated("200") {
		t.Error("\"False\" should decode as unauthenticated")
	}
}

func TestStore_Subscribers(t *testing.T) {
	s := newTestStore(t)
	registerUser(t, s, "1", "1")
	registerUser(t, s, "2", "2")
	registerUser(t, s, "3", "3")
	s.Authenticate("4", testPassword) // not registered

	s.ToggleSetting("2", SettingAlertAboutUsers) // when_in_office
	s.ToggleSetting("3", SettingAlertAboutUsers)
	s.ToggleSetting("3", SettingAlertAboutUsers) // off

	got := s.Subscribers(SettingAlertAboutUsers, ValueOn, ValueWhenInOffice)
	if want := []string{"1", "2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("subscribers = %v, want %v", got, want)
	}
}

func TestStore_Dump(t *testing.T) {
	s := newTestStore(t)
	data, err := s.Dump()
	if err != nil || data != nil {
		t.Errorf("Dump of missing file = %q, %v", data, err)
	}

	registerUser(t, s, "1", "5059")
	data, err = s.Dump()
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected document contents")
	}
}

func TestStore_TwoStoresShareDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	a := NewStore(path, testPassword)
	b := NewStore(path, testPassword)
	defer a.Close()
	defer b.Close()
	for _, s := range []*Store{a, b} {
		if err := s.Load(); err != nil {
			t.Fatalf("Load: %v", err)
		}
	}

	if err := a.Authenticate("1", testPassword); err != nil {
		t.Fatalf("a.Authenticate: %v", err)
	}
	if err := b.Authenticate("2", testPassword); err != nil {
		t.Fatalf("b.Authenticate: %v", err)
	}
	if _, err := a.AddWatch("1", "Ivanov Ivan"); err != nil {
		t.Fatalf("a.AddWatch: %v", err)
	}

	fresh := NewStore(path, testPassword)
	defer fresh.Close()
	if err := fresh.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := fresh.UserIDs(); !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Errorf("users on disk = %v, want [1 2]", got)
	}
	if got := fresh.Watched("1"); !reflect.DeepEqual(got, []string{"Ivanov Ivan"}) {
		t.Errorf("watched = %v", got)
	}
	if !a.IsAuthenticated("2") {
		t.Error("a should see b's user after its next mutation")
	}
}

func TestStore_ConcurrentAddWatch(t *testing.T) {
	s := newTestStore(t)
	registerUser(t, s, "1", "5059")
	other := NewStore(s.Path(), testPassword)
	defer other.Close()

	names := []string{"A", "B", "C", "D", "E", "F", "G", "H"}
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			store := s
			if i%2 == 1 {
				store = other
			}
			if _, err := store.AddWatch("1", name); err != nil {
				t.Errorf("AddWatch %s: %v", name, err)
			}
		}(i, name)
	}
	wg.Wait()

	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := s.Watched("1")
	sort.Strings(got)
	if !reflect.DeepEqual(got, names) {
		t.Errorf("watched = %v, want %v", got, names)
	}
}

func TestStore_FailedSaveLeavesStateUnchanged(t *testing.T) {
	s := newTestStore(t)
	registerUser(t, s, "1", "5059")

	if err := os.Mkdir(s.Path()+".tmp", 0755); err != nil {
		t.Fatal(err)
	}

	if err := s.Authenticate("2", testPassword); err == nil {
		t.Fatal("expected the write to fail")
	}
	if s.IsAuthenticated("2") {
		t.Error("user 2 authenticated in memory after a failed save")
	}
	if _, err := s.AddWatch("1", "Ivanov Ivan"); err == nil {
		t.Fatal("expected the write to fail")
	}
	if w := s.Watched("1"); len(w) != 0 {
		t.Errorf("watched = %v after a failed save", w)
	}
	before, _ := s.Settings("1")
	if _, err := s.ToggleSetting("1", SettingAlertAboutUsers); err == nil {
		t.Fatal("expected the write to fail")
	}
	after, _ := s.Settings("1")
	if !reflect.DeepEqual(before, after) {
		t.Errorf("settings changed after a failed save: %v -> %v", before.Values, after.Values)
	}

	if err := os.Remove(s.Path() + ".tmp"); err != nil {
		t.Fatal(err)
	}
	if err := s.Authenticate("2", testPassword); err != nil {
		t.Fatalf("Authenticate after recovery: %v", err)
	}
	reloaded := NewStore(s.Path(), testPassword)
	defer reloaded.Close()
	if err := reloaded.Load(); err != nil {
		t.Fatal(err)
	}
	if !reloaded.IsAuthenticated("2") || len(reloaded.Watched("1")) != 0 {
		t.Errorf("disk state = %v, watched %v", reloaded.UserIDs(), reloaded.Watched("1"))
	}
}
