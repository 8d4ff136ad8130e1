package prolink

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Jobs is the job and proposal service: thin, owner-scoped CRUD over
// the backend's jobs and proposals tables.
type Jobs struct {
	data   DataAPI
	logger Logger
}

// NewJobs returns a job service over the given data API.
func NewJobs(data DataAPI) *Jobs {
	return &Jobs{
		data:   data,
		logger: defLogger{},
	}
}

func (j *Jobs) WithLogger(l Logger) *Jobs {
	if l != nil {
		j.logger = l
	}
	return j
}

// Create posts a new job for clientID. Drafts are allowed; an empty
// status defaults to draft.
func (j *Jobs) Create(ctx context.Context, job *Job) (*Job, error) {
	if job == nil || job.ClientID == uuid.Nil {
		return nil, goerrors.New("job requires a client id", goerrors.CategoryValidation).
			WithTextCode("JOB_MISSING_CLIENT")
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = JobStatusDraft
	}

	created := &Job{}
	if err := j.data.Insert(ctx, TableJobs, job, created); err != nil {
		j.logger.Error("job create for client %s failed: %v", job.ClientID, err)
		return nil, err
	}
	return created, nil
}

// Get fetches a job by id, returning nil when it does not exist.
func (j *Jobs) Get(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	job := &Job{}
	err := j.data.SelectOne(ctx, TableJobs, map[string]any{"id": jobID.String()}, job)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		j.logger.Error("job %s fetch failed: %v", jobID, err)
		return nil, err
	}
	return job, nil
}

// List returns all jobs, newest first.
func (j *Jobs) List(ctx context.Context) ([]Job, error) {
	var jobs []Job
	err := j.data.Select(ctx, TableJobs, Query{
		OrderBy:    "created_at",
		Descending: true,
	}, &jobs)
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListByClient returns the jobs posted by clientID, newest first.
func (j *Jobs) ListByClient(ctx context.Context, clientID uuid.UUID) ([]Job, error) {
	var jobs []Job
	err := j.data.Select(ctx, TableJobs, Query{
		Match:      map[string]any{"client_id": clientID.String()},
		OrderBy:    "created_at",
		Descending: true,
	}, &jobs)
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// UpdateStatus moves a job through its lifecycle.
func (j *Jobs) UpdateStatus(ctx context.Context, jobID uuid.UUID, status JobStatus) error {
	switch status {
	case JobStatusDraft, JobStatusActive, JobStatusInProgress, JobStatusCompleted, JobStatusCancelled:
	default:
		return goerrors.New("unknown job status", goerrors.CategoryValidation).
			WithTextCode("UNKNOWN_JOB_STATUS").
			WithMetadata(map[string]any{"status": status})
	}
	return j.data.Update(ctx, TableJobs, map[string]any{"id": jobID.String()}, map[string]any{"status": status})
}

// Delete removes a job.
func (j *Jobs) Delete(ctx context.Context, jobID uuid.UUID) error {
	return j.data.Delete(ctx, TableJobs, map[string]any{"id": jobID.String()})
}

// CreateProposal submits a professional's bid on a job.
func (j *Jobs) CreateProposal(ctx context.Context, proposal *Proposal) (*Proposal, error) {
	if proposal == nil || proposal.JobID == uuid.Nil || proposal.ProfessionalID == uuid.Nil {
		return nil, goerrors.New("proposal requires job and professional ids", goerrors.CategoryValidation).
			WithTextCode("PROPOSAL_MISSING_REFS")
	}
	if proposal.ID == uuid.Nil {
		proposal.ID = uuid.New()
	}
	if proposal.Status == "" {
		proposal.Status = ProposalStatusPending
	}

	created := &Proposal{}
	if err := j.data.Insert(ctx, TableProposals, proposal, created); err != nil {
		j.logger.Error("proposal create for job %s failed: %v", proposal.JobID, err)
		return nil, err
	}
	return created, nil
}

// ProposalsByJob returns the bids on a job.
func (j *Jobs) ProposalsByJob(ctx context.Context, jobID uuid.UUID) ([]Proposal, error) {
	var proposals []Proposal
	err := j.data.Select(ctx, TableProposals, Query{
		Match: map[string]any{"job_id": jobID.String()},
	}, &proposals)
	if err != nil {
		return nil, err
	}
	return proposals, nil
}

// ProposalsByProfessional returns a professional's bids.
func (j *Jobs) ProposalsByProfessional(ctx context.Context, professionalID uuid.UUID) ([]Proposal, error) {
	var proposals []Proposal
	err := j.data.Select(ctx, TableProposals, Query{
		Match: map[string]any{"professional_id": professionalID.String()},
	}, &proposals)
	if err != nil {
		return nil, err
	}
	return proposals, nil
}

// UpdateProposalStatus moves a proposal through its lifecycle.
func (j *Jobs) UpdateProposalStatus(ctx context.Context, proposalID uuid.UUID, status ProposalStatus) error {
	switch status {
	case ProposalStatusPending, ProposalStatusAccepted, ProposalStatusRejected, ProposalStatusWithdrawn:
	default:
		return goerrors.New("unknown proposal status", goerrors.CategoryValidation).
			WithTextCode("UNKNOWN_PROPOSAL_STATUS").
			WithMetadata(map[string]any{"status": status})
	}
	return j.data.Update(ctx, TableProposals, map[string]any{"id": proposalID.String()}, map[string]any{"status": status})
}

// DeleteProposal withdraws and removes a bid.
func (j *Jobs) DeleteProposal(ctx context.Context, proposalID uuid.UUID) error {
	return j.data.Delete(ctx, TableProposals, map[string]any{"id": proposalID.String()})
}
