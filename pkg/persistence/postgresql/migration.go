package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create workflows table
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				version INT NOT NULL DEFAULT 1,
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'active', 'archived')),
				nodes JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				variables JSONB,
				metadata JSONB,
				owner VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_owner ON workflows(owner);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);
			CREATE INDEX idx_workflows_deleted_at ON workflows(deleted_at);
		`,
		2: `
			-- Create executions table (run tracking records)
			CREATE TABLE executions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('running', 'completed', 'failed', 'cancelled')),
				input_data JSONB,
				output_data JSONB,
				error_message TEXT,
				error_stack TEXT,
				progress_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
				mode VARCHAR(50) NOT NULL DEFAULT 'production',
				metadata JSONB,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_executions_workflow_id ON executions(workflow_id);
			CREATE INDEX idx_executions_status ON executions(status);
			CREATE INDEX idx_executions_started_at ON executions(started_at);

			-- Create block_executions table (per-node results)
			CREATE TABLE block_executions (
				seq BIGSERIAL PRIMARY KEY,
				execution_id VARCHAR(255) NOT NULL REFERENCES executions(id) ON DELETE CASCADE,
				node_id VARCHAR(255) NOT NULL,
				block_type VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				input JSONB,
				output JSONB,
				error JSONB,
				execution_time_ms BIGINT NOT NULL DEFAULT 0,
				retry_count INT NOT NULL DEFAULT 0,
				start_time TIMESTAMP WITH TIME ZONE,
				end_time TIMESTAMP WITH TIME ZONE,
				metadata JSONB,
				logs JSONB
			);

			CREATE INDEX idx_block_executions_execution_id ON block_executions(execution_id);
			CREATE INDEX idx_block_executions_node_id ON block_executions(node_id);

			-- Create timeline_events table (append-only audit trail)
			CREATE TABLE timeline_events (
				seq BIGSERIAL PRIMARY KEY,
				id VARCHAR(255) NOT NULL,
				execution_id VARCHAR(255) NOT NULL,
				event VARCHAR(255) NOT NULL,
				event_type VARCHAR(50) NOT NULL,
				node_id VARCHAR(255),
				block_type VARCHAR(255),
				details JSONB,
				error_message TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_timeline_events_execution_id ON timeline_events(execution_id);
			CREATE INDEX idx_timeline_events_created_at ON timeline_events(created_at);
		`,
	}
}
