// Package template expands identity placeholders in configured paths, so one
// tracked config file can serve every user on a machine.
package template

import (
	"os"
	"strconv"
	"strings"
)

// Vars is a placeholder name to value mapping.
type Vars map[string]string

// IdentityVars builds the standard placeholder set for a resolved user.
//
// Supported placeholders:
//
//	{user}     - username the caches belong to
//	{uid}      - numeric user id
//	{gid}      - numeric group id
//	{home}     - the user's home directory
//	{hostname} - short hostname
func IdentityVars(username string, uid, gid int, home string) Vars {
	vars := Vars{
		"user": username,
		"uid":  strconv.Itoa(uid),
		"gid":  strconv.Itoa(gid),
		"home": home,
	}
	if h, err := os.Hostname(); err == nil {
		vars["hostname"] = strings.Split(h, ".")[0]
	} else {
		vars["hostname"] = "unknown"
	}
	return vars
}

// Expand replaces {name} placeholders in text. Unknown placeholders are left
// untouched so a typo surfaces in path validation instead of vanishing.
func Expand(text string, vars Vars) string {
	if !strings.Contains(text, "{") {
		return text
	}
	for name, value := range vars {
		text = strings.ReplaceAll(text, "{"+name+"}", value)
	}
	return text
}
