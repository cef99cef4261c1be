// Package catalog is the static table of every device-management method the
// sandbox may expose: name, classification, required capability, whether it
// needs apply-time approval, and its category. It is immutable process-global
// data, fixed at build time, looked up by name in constant time. A method
// name absent from the catalog is invisible through the proxy.
package catalog

import "sync"

// Classification is the kind of side effect a catalogued method has.
type Classification string

const (
	Read    Classification = "read"
	Write   Classification = "write"
	Command Classification = "command"
)

// Entry is one row of the classification catalog.
type Entry struct {
	Name               string
	Classification     Classification
	RequiredCapability string // "<verb>:<category>", e.g. "write:policies"
	NeedsApproval      bool
	Category           string
	// InvalidatesPrefixes lists cache-key prefixes a successful write/command
	// invalidates in the adapter cache (§4.I "declarative prefix list per
	// mutator"). Empty for read operations.
	InvalidatesPrefixes []string
	// ArgsSchema is an optional JSON Schema (draft 2020-12) the method's
	// positional args, marshaled as a JSON array, must satisfy. Most entries
	// leave this empty — the proxy skips validation in that case.
	ArgsSchema string
}

var (
	mu      sync.RWMutex
	entries = buildCatalog()
)

// Lookup returns the catalog entry for name, if any.
func Lookup(name string) (Entry, bool) {
	mu.RLock()
	defer mu.RUnlock()
	e, ok := entries[name]
	return e, ok
}

// All returns a snapshot of every catalog entry.
func All() []Entry {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	return out
}

// Verb returns the capability verb ("read", "write", "command") expected for
// a classification — capability tokens use the same vocabulary as
// classifications by construction.
func (c Classification) Verb() string { return string(c) }

func entry(name string, cls Classification, category string, needsApproval bool, invalidates ...string) Entry {
	return Entry{
		Name:                name,
		Classification:      cls,
		RequiredCapability:  cls.Verb() + ":" + category,
		NeedsApproval:       needsApproval,
		Category:            category,
		InvalidatesPrefixes: invalidates,
	}
}

// withSchema attaches an argument JSON Schema to an otherwise-built entry.
func withSchema(e Entry, schema string) Entry {
	e.ArgsSchema = schema
	return e
}

// buildCatalog enumerates the 91-method device-management surface this
// core mediates. The concrete request/response shapes for each method live
// in the adapter (component I) and are out of scope here — the catalog only
// needs name, classification, capability, and approval/invalidation policy.
func buildCatalog() map[string]Entry {
	m := make(map[string]Entry)
	add := func(e Entry) { m[e.Name] = e }

	// --- computers ---
	for _, name := range []string{"getAllComputers", "getComputerDetails", "searchComputers", "getComputerGroups", "getComputerGroupDetails", "getComputerHistory", "getComputerInventory"} {
		add(entry(name, Read, "computers", false))
	}
	add(entry("updateComputer", Write, "computers", false, "listComputers:*", "getComputerDetails:"))
	add(entry("deleteComputer", Write, "computers", true, "listComputers:*", "getComputerDetails:"))
	add(withSchema(entry("createComputerGroup", Write, "computers", false, "listComputerGroups:*"), createComputerGroupArgsSchema))
	add(entry("updateComputerGroup", Write, "computers", false, "listComputerGroups:*", "getComputerGroupDetails:"))
	add(entry("deleteComputerGroup", Write, "computers", true, "listComputerGroups:*"))
	add(entry("inventoryRefresh", Command, "computers", true))
	add(entry("eraseDevice", Command, "computers", true))
	add(entry("lockDevice", Command, "computers", true))
	add(entry("wipeComputer", Command, "computers", true))

	// --- mobile devices ---
	for _, name := range []string{"getAllMobileDevices", "getMobileDeviceDetails", "searchMobileDevices", "getMobileDeviceGroups", "getMobileDeviceGroupDetails", "getMobileDeviceHistory"} {
		add(entry(name, Read, "mobiledevices", false))
	}
	add(entry("updateMobileDevice", Write, "mobiledevices", false, "listMobileDevices:*", "getMobileDeviceDetails:"))
	add(entry("deleteMobileDevice", Write, "mobiledevices", true, "listMobileDevices:*"))
	add(entry("createMobileDeviceGroup", Write, "mobiledevices", false, "listMobileDeviceGroups:*"))
	add(entry("updateMobileDeviceGroup", Write, "mobiledevices", false, "listMobileDeviceGroups:*"))
	add(entry("deleteMobileDeviceGroup", Write, "mobiledevices", true, "listMobileDeviceGroups:*"))
	add(entry("sendMDMCommand", Command, "mobiledevices", true))
	add(entry("eraseMobileDevice", Command, "mobiledevices", true))
	add(entry("lockMobileDevice", Command, "mobiledevices", true))
	add(entry("flushCommands", Command, "mobiledevices", true))

	// --- policies ---
	for _, name := range []string{"getAllPolicies", "getPolicyDetails", "searchPolicies"} {
		add(entry(name, Read, "policies", false))
	}
	add(withSchema(entry("createPolicy", Write, "policies", false, "listPolicies:*"), createPolicyArgsSchema))
	add(entry("updatePolicy", Write, "policies", false, "listPolicies:*", "getPolicyDetails:"))
	add(entry("deletePolicy", Write, "policies", true, "listPolicies:*", "getPolicyDetails:"))
	add(entry("executePolicy", Command, "policies", true))

	// --- scripts ---
	for _, name := range []string{"getAllScripts", "getScriptDetails", "searchScripts"} {
		add(entry(name, Read, "scripts", false))
	}
	add(entry("createScript", Write, "scripts", false, "listScripts:*"))
	add(entry("updateScript", Write, "scripts", false, "listScripts:*", "getScriptDetails:"))
	add(entry("deleteScript", Write, "scripts", true, "listScripts:*"))
	add(entry("deployScript", Command, "scripts", true))

	// --- configuration profiles ---
	for _, name := range []string{"getAllProfiles", "getProfileDetails", "searchProfiles"} {
		add(entry(name, Read, "profiles", false))
	}
	add(entry("createProfile", Write, "profiles", false, "listProfiles:*"))
	add(entry("updateProfile", Write, "profiles", false, "listProfiles:*", "getProfileDetails:"))
	add(entry("deleteProfile", Write, "profiles", true, "listProfiles:*"))
	add(entry("deployProfile", Command, "profiles", true))
	add(entry("removeProfile", Command, "profiles", true))

	// --- policy groups / smart groups already covered above under computers/mobiledevices ---

	// --- categories ---
	for _, name := range []string{"getAllCategories", "getCategoryDetails"} {
		add(entry(name, Read, "categories", false))
	}
	add(entry("createCategory", Write, "categories", false, "listCategories:*"))
	add(entry("updateCategory", Write, "categories", false, "listCategories:*"))
	add(entry("deleteCategory", Write, "categories", true, "listCategories:*"))

	// --- departments ---
	for _, name := range []string{"getAllDepartments", "getDepartmentDetails"} {
		add(entry(name, Read, "departments", false))
	}
	add(entry("createDepartment", Write, "departments", false, "listDepartments:*"))
	add(entry("updateDepartment", Write, "departments", false, "listDepartments:*"))
	add(entry("deleteDepartment", Write, "departments", true, "listDepartments:*"))

	// --- buildings ---
	for _, name := range []string{"getAllBuildings", "getBuildingDetails"} {
		add(entry(name, Read, "buildings", false))
	}
	add(entry("createBuilding", Write, "buildings", false, "listBuildings:*"))
	add(entry("updateBuilding", Write, "buildings", false, "listBuildings:*"))
	add(entry("deleteBuilding", Write, "buildings", true, "listBuildings:*"))

	// --- webhooks ---
	for _, name := range []string{"getAllWebhooks", "getWebhookDetails"} {
		add(entry(name, Read, "webhooks", false))
	}
	add(entry("createWebhook", Write, "webhooks", false, "listWebhooks:*"))
	add(entry("updateWebhook", Write, "webhooks", false, "listWebhooks:*"))
	add(entry("deleteWebhook", Write, "webhooks", true, "listWebhooks:*"))

	// --- users / user groups ---
	for _, name := range []string{"getAllUsers", "getUserDetails", "getAllUserGroups", "getUserGroupDetails"} {
		add(entry(name, Read, "users", false))
	}
	add(withSchema(entry("createUser", Write, "users", false, "listUsers:*"), createUserArgsSchema))
	add(entry("updateUser", Write, "users", false, "listUsers:*", "getUserDetails:"))
	add(entry("deleteUser", Write, "users", true, "listUsers:*"))

	// --- advanced searches ---
	for _, name := range []string{"getAllAdvancedComputerSearches", "getAdvancedComputerSearchDetails", "getAllAdvancedMobileDeviceSearches", "getAdvancedMobileDeviceSearchDetails"} {
		add(entry(name, Read, "searches", false))
	}
	add(entry("createAdvancedComputerSearch", Write, "searches", false, "listAdvancedComputerSearches:*"))
	add(entry("deleteAdvancedComputerSearch", Write, "searches", true, "listAdvancedComputerSearches:*"))

	// --- enrollment / PreStage ---
	for _, name := range []string{"getAllPreStageEnrollments", "getPreStageEnrollmentDetails"} {
		add(entry(name, Read, "enrollment", false))
	}
	add(entry("createPreStageEnrollment", Write, "enrollment", false, "listPreStageEnrollments:*"))
	add(entry("updatePreStageEnrollment", Write, "enrollment", false, "listPreStageEnrollments:*"))
	add(entry("deletePreStageEnrollment", Write, "enrollment", true, "listPreStageEnrollments:*"))

	return m
}
