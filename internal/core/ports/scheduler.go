package ports

type SchedulerService interface {
	Start()
	Stop()

	ScheduleTaskRecurring(intervalSeconds int64, task func()) error
}
