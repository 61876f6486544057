package config

type WorkerKeyStruct struct {
	PersistIncidentsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistIncidentsQueue: "proctor_incidents_queue",
}
