package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyIntents(t *testing.T) {
	classifier := NewRuleBasedClassifier()

	cases := []struct {
		name    string
		text    string
		isStaff bool
		want    string
	}{
		{name: "upload command", text: "/upload Brio 2020", isStaff: true, want: IntentStaffUpload},
		{name: "bare upload alias for staff", text: "upload Brio 2020", isStaff: true, want: IntentStaffUpload},
		{name: "slash command from outsider still classifies", text: "/stats", isStaff: false, want: IntentStaffStats},
		{name: "bare alias from outsider stays customer", text: "upload dong", isStaff: false, want: IntentCustGeneral},
		{name: "status command", text: "/status V123 terjual", isStaff: true, want: IntentStaffStatus},
		{name: "stock command", text: "/stok brio", isStaff: true, want: IntentStaffStock},
		{name: "cancel alias", text: "/batal", isStaff: true, want: IntentStaffCancel},
		{name: "help", text: "/help", isStaff: true, want: IntentStaffHelp},
		{name: "greeting", text: "Halo kak", isStaff: false, want: IntentCustGreeting},
		{name: "morning greeting", text: "selamat pagi", isStaff: false, want: IntentCustGreeting},
		{name: "price question", text: "berapa harga avanza?", isStaff: false, want: IntentCustPrice},
		{name: "stock question", text: "ada stok mobil apa aja", isStaff: false, want: IntentCustVehicle},
		{name: "model mention", text: "brio masih ada?", isStaff: false, want: IntentCustVehicle},
		{name: "small talk", text: "oke ditunggu ya", isStaff: false, want: IntentCustGeneral},
		{name: "empty", text: "   ", isStaff: true, want: IntentCustGeneral},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifier.Classify(context.Background(), tc.text, tc.isStaff)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestIsStaffIntent(t *testing.T) {
	assert.True(t, IsStaffIntent(IntentStaffUpload))
	assert.True(t, IsStaffIntent(IntentStaffCancel))
	assert.False(t, IsStaffIntent(IntentCustGreeting))
	assert.False(t, IsStaffIntent("something_else"))
}
