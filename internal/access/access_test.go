package access

import "testing"

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"admin", RoleAdmin},
		{" ADMIN ", RoleAdmin},
		{"viewer", RoleViewer},
		{"", RoleViewer},
		{"owner", RoleViewer},
		{"superuser", RoleViewer},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseRole(tt.in); got != tt.want {
				t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestAllows_ViewerSafeActions(t *testing.T) {
	for _, a := range []Action{ActionViewUsers, ActionViewApplications, ActionViewPermissions, ActionViewProfile} {
		for _, r := range []Role{RoleAdmin, RoleViewer, "", "bogus"} {
			if !Allows(r, a) {
				t.Errorf("Allows(%q, %q) = false, want true", r, a)
			}
		}
	}
}

func TestAllows_AdminActions(t *testing.T) {
	for _, a := range AdminActions() {
		if IsViewerSafe(a) {
			t.Errorf("%q is in both admin and viewer-safe sets", a)
		}
		if !Allows(RoleAdmin, a) {
			t.Errorf("Allows(admin, %q) = false, want true", a)
		}
		for _, r := range []Role{RoleViewer, "", "Owner", "root"} {
			if Allows(r, a) {
				t.Errorf("Allows(%q, %q) = true, want false", r, a)
			}
		}
	}
}

func TestAllows_UnknownActionNeedsAdmin(t *testing.T) {
	unknown := Action("reports:export")
	if Allows(RoleViewer, unknown) {
		t.Error("viewer allowed an unclassified action")
	}
	if !Allows(RoleAdmin, unknown) {
		t.Error("admin denied an unclassified action")
	}
}
