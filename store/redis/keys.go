package redis

// Redis key naming conventions for pagewatch data.
// All keys are prefixed with "pagewatch:" to avoid collisions.

const keyPrefix = "pagewatch:"

// jobKey returns the key for a descriptor: pagewatch:job:{id}
func jobKey(id string) string { return keyPrefix + "job:" + id }

// jobIDsKey is the Set tracking all job IDs for enumeration.
const jobIDsKey = keyPrefix + "job_ids"

// jobNamesKey maps job names to IDs for duplicate detection.
const jobNamesKey = keyPrefix + "job_names"

// resultKey returns the key for a job's cached result: pagewatch:result:{jobID}
func resultKey(jobID string) string { return keyPrefix + "result:" + jobID }

// resultIDsKey is the Set tracking job IDs with cached results.
const resultIDsKey = keyPrefix + "result_ids"

// leaseKey returns the dispatch lease key: pagewatch:lease:{jobID}
func leaseKey(jobID string) string { return keyPrefix + "lease:" + jobID }
