package metrics

import "strings"

const namespace = "docbuddy"

// MetricName prefixes name with the application namespace once.
func MetricName(name string) string {
	if strings.HasPrefix(name, namespace+"_") {
		return name
	}
	return namespace + "_" + name
}

// MetricNameWithSubsystem builds namespace_subsystem_name.
func MetricNameWithSubsystem(subsystem, name string) string {
	sub := strings.Trim(subsystem, "_")
	if name == "" {
		return MetricName(sub)
	}
	return MetricName(sub + "_" + name)
}
