package config

// mergeConfigs merges override configuration into base. Zero values in the
// override leave the base untouched.
func mergeConfigs(base, override *Config) *Config {
	result := *base

	// Merge version
	if override.Version != "" {
		result.Version = override.Version
	}

	result.API = mergeAPI(result.API, override.API)
	result.Push = mergePush(result.Push, override.Push)
	result.Session = mergeSession(result.Session, override.Session)
	result.Sync = mergeSync(result.Sync, override.Sync)

	// Merge extensions
	if override.Extensions != nil {
		merged := make(map[string]interface{}, len(result.Extensions)+len(override.Extensions))
		for key, value := range result.Extensions {
			merged[key] = value
		}
		for key, value := range override.Extensions {
			// If both base and override have the same extension key, merge them
			if baseValue, exists := merged[key]; exists {
				if baseMap, baseOk := baseValue.(map[string]interface{}); baseOk {
					if overrideMap, overrideOk := value.(map[string]interface{}); overrideOk {
						mergedMap := make(map[string]interface{})
						for k, v := range baseMap {
							mergedMap[k] = v
						}
						for k, v := range overrideMap {
							mergedMap[k] = v
						}
						merged[key] = mergedMap
						continue
					}
				}
			}
			// Otherwise just replace
			merged[key] = value
		}
		result.Extensions = merged
	}

	return &result
}

func mergeAPI(base, override APIConfig) APIConfig {
	result := base
	if override.BaseURL != "" {
		result.BaseURL = override.BaseURL
	}
	if override.Timeout != 0 {
		result.Timeout = override.Timeout
	}
	return result
}

func mergePush(base, override PushConfig) PushConfig {
	result := base
	if override.Endpoint != "" {
		result.Endpoint = override.Endpoint
	}
	if override.Destination != "" {
		result.Destination = override.Destination
	}
	if override.ReconnectDelay != 0 {
		result.ReconnectDelay = override.ReconnectDelay
	}
	if override.HeartbeatOutgoing != 0 {
		result.HeartbeatOutgoing = override.HeartbeatOutgoing
	}
	if override.HeartbeatIncoming != 0 {
		result.HeartbeatIncoming = override.HeartbeatIncoming
	}
	if override.HeartbeatGrace != 0 {
		result.HeartbeatGrace = override.HeartbeatGrace
	}
	if override.ConnectTimeout != 0 {
		result.ConnectTimeout = override.ConnectTimeout
	}
	return result
}

func mergeSession(base, override SessionConfig) SessionConfig {
	result := base
	if override.Source != "" {
		result.Source = override.Source
	}
	if override.TokenFile != "" {
		result.TokenFile = override.TokenFile
	}
	if override.KeyringService != "" {
		result.KeyringService = override.KeyringService
	}
	if override.PollInterval != 0 {
		result.PollInterval = override.PollInterval
	}
	return result
}

func mergeSync(base, override SyncConfig) SyncConfig {
	result := base
	if override.SnapshotTimeout != 0 {
		result.SnapshotTimeout = override.SnapshotTimeout
	}
	if override.ResyncOnCommandFailure {
		result.ResyncOnCommandFailure = true
	}
	return result
}
