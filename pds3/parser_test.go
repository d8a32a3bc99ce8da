package pds3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const missionCatalog = `PDS_VERSION_ID = PDS3
RECORD_TYPE = STREAM

OBJECT = MISSION
  MISSION_NAME = "MARS GLOBAL SURVEYOR"

  OBJECT = MISSION_INFORMATION
    MISSION_NAME = "MARS GLOBAL SURVEYOR"
    MISSION_START_DATE = 1994-10-12
    MISSION_STOP_DATE = UNK
  END_OBJECT = MISSION_INFORMATION

  OBJECT = MISSION_HOST
    INSTRUMENT_HOST_ID = MGS

    OBJECT = MISSION_TARGET
      TARGET_NAME = MARS
    END_OBJECT = MISSION_TARGET

    OBJECT = MISSION_TARGET
      TARGET_NAME = PHOBOS
    END_OBJECT = MISSION_TARGET

    OBJECT = MISSION_TARGET
      TARGET_NAME = SUN
    END_OBJECT = MISSION_TARGET
  END_OBJECT = MISSION_HOST

  OBJECT = MISSION_REFERENCE_INFORMATION
    REFERENCE_KEY_ID = ZUBERETAL1992
  END_OBJECT = MISSION_REFERENCE_INFORMATION

  OBJECT = MISSION_REFERENCE_INFORMATION
    REFERENCE_KEY_ID = SMITHETAL1999
  END_OBJECT = MISSION_REFERENCE_INFORMATION

  OBJECT = MISSION_REFERENCE_INFORMATION
    REFERENCE_KEY_ID = ALBEEETAL2001
  END_OBJECT = MISSION_REFERENCE_INFORMATION

  OBJECT = MISSION_REFERENCE_INFORMATION
    REFERENCE_KEY_ID = TANAKAETAL1992
  END_OBJECT = MISSION_REFERENCE_INFORMATION

  OBJECT = MISSION_REFERENCE_INFORMATION
    REFERENCE_KEY_ID = CHRISTENSENETAL2001
  END_OBJECT = MISSION_REFERENCE_INFORMATION

  OBJECT = MISSION_REFERENCE_INFORMATION
    REFERENCE_KEY_ID = MALINETAL1998
  END_OBJECT = MISSION_REFERENCE_INFORMATION

  OBJECT = MISSION_REFERENCE_INFORMATION
    REFERENCE_KEY_ID = ALBEEETAL1998
  END_OBJECT = MISSION_REFERENCE_INFORMATION

  OBJECT = MISSION_REFERENCE_INFORMATION
    REFERENCE_KEY_ID = SMITHETAL2001
  END_OBJECT = MISSION_REFERENCE_INFORMATION

  OBJECT = MISSION_REFERENCE_INFORMATION
    REFERENCE_KEY_ID = HEADETAL1999
  END_OBJECT = MISSION_REFERENCE_INFORMATION
END_OBJECT = MISSION
END
`

func TestParseFileMission(t *testing.T) {
	objs, err := ParseFile("MISSION.CAT", missionCatalog)
	require.NoError(t, err)
	require.Len(t, objs, 1)

	m, ok := objs[0].(Mission)
	require.True(t, ok)
	assert.Equal(t, []string{"MARS", "PHOBOS", "SUN"}, m.Targets)
	assert.GreaterOrEqual(t, len(m.References), 9)

	start := m.Properties()["MISSION_START_DATE"]
	require.Equal(t, KindDate, start.Kind)
	assert.Equal(t, 1994, start.Date.Year())
	assert.Equal(t, 10, int(start.Date.Month()))
	assert.Equal(t, 12, start.Date.Day())

	stop := m.Properties()["MISSION_STOP_DATE"]
	assert.Equal(t, KindUnknown, stop.Kind)

	hasZuber := false
	for _, ref := range m.References {
		if ref["REFERENCE_KEY_ID"].String() == "ZUBERETAL1992" {
			hasZuber = true
		}
	}
	assert.True(t, hasZuber)
}

func personnelBlock(id, lastName, email, regDate string) string {
	return `OBJECT = PERSONNEL
  OBJECT = PERSONNEL_INFORMATION
    PDS_USER_ID = "` + id + `"
    LAST_NAME = "` + lastName + `"
    REGISTRATION_DATE = ` + regDate + `
  END_OBJECT = PERSONNEL_INFORMATION
  OBJECT = PERSONNEL_ELECTRONIC_MAIL
    ELECTRONIC_MAIL_ID = "` + email + `"
  END_OBJECT = PERSONNEL_ELECTRONIC_MAIL
END_OBJECT = PERSONNEL
`
}

func TestParseFilePersonnelMultipleRecords(t *testing.T) {
	names := []string{"AARNOLD", "BCHAPMAN", "CEDWARDS", "DFOSTER", "EGREEN", "FHOWARD", "GLEWIS", "SSLAVNEY"}
	src := "PDS_VERSION_ID = PDS3\n"
	for _, n := range names {
		email := n + "@WUNDER.WUSTL.EDU"
		regDate := "1988-11-01"
		if n == "SSLAVNEY" {
			email = "SLAVNEY@WUNDER.WUSTL.EDU"
		}
		src += personnelBlock(n, n, email, regDate)
	}

	objs, err := ParseFile("PERSON.CAT", src)
	require.NoError(t, err)
	require.Len(t, objs, 8)

	var found *Personnel
	for _, o := range objs {
		p := o.(Personnel)
		if p.Properties()["PDS_USER_ID"].String() == "SSLAVNEY" {
			found = &p
		}
	}
	require.NotNil(t, found)
	require.Len(t, found.Emails, 1)
	assert.Equal(t, "SLAVNEY@WUNDER.WUSTL.EDU", found.Emails[0])

	reg := found.Properties()["REGISTRATION_DATE"]
	require.Equal(t, KindDate, reg.Kind)
	assert.Equal(t, 1988, reg.Date.Year())
	assert.Equal(t, 11, int(reg.Date.Month()))
	assert.Equal(t, 1, reg.Date.Day())
}

func TestParseFileMissingRequiredSubObjectFails(t *testing.T) {
	src := `PDS_VERSION_ID = PDS3
OBJECT = MISSION
  MISSION_NAME = "NO HOST OR INFO"
END_OBJECT = MISSION
`
	_, err := ParseFile("MISSION.CAT", src)
	require.Error(t, err)
}

func TestParseFileUnclosedObjectIsParseError(t *testing.T) {
	src := `PDS_VERSION_ID = PDS3
OBJECT = MISSION
  MISSION_NAME = "UNCLOSED"
`
	_, err := ParseFile("MISSION.CAT", src)
	require.Error(t, err)
}

func TestScalarValueClassification(t *testing.T) {
	assert.Equal(t, KindUnknown, scalarValue("UNK").Kind)
	assert.Equal(t, KindUnknown, scalarValue("N/A").Kind)
	assert.Equal(t, KindDate, scalarValue("1994-10-12").Kind)
	assert.Equal(t, KindNumber, scalarValue("42.5").Kind)
	assert.Equal(t, KindString, scalarValue("MARS").Kind)
}
